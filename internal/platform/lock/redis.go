package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

// Deletes the key only when it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Pushes the expiry out only when the key still carries our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedisLocker(log *logger.Logger, addr string, prefix string) (*RedisLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if prefix == "" {
		prefix = "docsentinel:lock:"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLocker{log: log.With("service", "RedisLocker"), rdb: rdb, prefix: prefix}, nil
}

func (l *RedisLocker) Close() error { return l.rdb.Close() }

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{owner: l, key: full, token: token}, nil
}

type redisLease struct {
	owner *RedisLocker
	key   string
	token string
}

func (r *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, r.owner.rdb, []string{r.key}, r.token, ttl.Milliseconds()).Int()
	if err != nil && err != goredis.Nil {
		return fmt.Errorf("redis extend: %w", err)
	}
	if n == 0 {
		return ErrNotAcquired
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, r.owner.rdb, []string{r.key}, r.token).Err(); err != nil && err != goredis.Nil {
		r.owner.log.Warn("lock release failed", "key", r.key, "error", err)
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
