package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired means another owner holds the key and its TTL has not expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Lease is a held key. Extend and Release only act while this owner still
// holds it; Extend returns ErrNotAcquired once the key was lost.
type Lease interface {
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// LocalLocker is the single-process fallback used when no Redis address is configured.
type LocalLocker struct {
	mu   sync.Mutex
	now  func() time.Time
	held map[string]localLease
}

type localLease struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{now: time.Now, held: map[string]localLease{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}
	return &localHandle{owner: l, key: key, token: token}, nil
}

type localHandle struct {
	owner *LocalLocker
	key   string
	token string
}

func (h *localHandle) Extend(ctx context.Context, ttl time.Duration) error {
	l := h.owner
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cur, ok := l.held[h.key]
	if !ok || cur.token != h.token || !now.Before(cur.expires) {
		return ErrNotAcquired
	}
	cur.expires = now.Add(ttl)
	l.held[h.key] = cur
	return nil
}

func (h *localHandle) Release(context.Context) error {
	l := h.owner
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[h.key]; ok && cur.token == h.token {
		delete(l.held, h.key)
	}
	return nil
}
