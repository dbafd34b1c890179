package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

// DistributedLock serializes a critical section across processes.
type DistributedLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// releaseScript deletes the key only if it still holds our token, so an
// expired holder cannot release a lock that was taken over by another process.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	client *redis.Client
	token  string
}

func NewRedisLock(client *redis.Client) *RedisLock {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return &RedisLock{client: client, token: hex.EncodeToString(b)}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, "lock:"+key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.client, []string{"lock:" + key}, l.token).Err()
}

// Wait polls Acquire until it succeeds or ctx is done.
func Wait(ctx context.Context, l DistributedLock, key string, ttl, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		ok, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
	}
}

// Nop is used when no Redis is configured; the in-process mutex of the
// caller is then the only serialization.
type Nop struct{}

func (Nop) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (Nop) Release(context.Context, string) error                       { return nil }
