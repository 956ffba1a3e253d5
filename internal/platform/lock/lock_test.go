package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	lease, err := l.Acquire(ctx, "job:1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "job:1", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire err=%v", err)
	}
	if _, err := l.Acquire(ctx, "job:2", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "job:1", time.Minute); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
}

func TestLocalLockerExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := l.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("expired lease should be reclaimable: %v", err)
	}
	// The stale owner must not free the new owner's lease.
	_ = stale.Release(ctx)
	if _, err := l.Acquire(ctx, "k", time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("err=%v", err)
	}
}

func TestLocalLeaseExtend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	lease, err := l.Acquire(ctx, "k", 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	now = now.Add(8 * time.Second)
	if err := lease.Extend(ctx, 10*time.Second); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	now = now.Add(8 * time.Second)
	if _, err := l.Acquire(ctx, "k", time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("extended lease was reclaimed: %v", err)
	}

	now = now.Add(time.Minute)
	if err := lease.Extend(ctx, time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expired lease extend err=%v", err)
	}
	if _, err := l.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if err := lease.Extend(ctx, time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("lost lease extend err=%v", err)
	}
}
