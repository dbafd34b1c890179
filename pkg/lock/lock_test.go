package lock

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyLock struct{ tries atomic.Int32 }

func (f *flakyLock) Acquire(context.Context, string, time.Duration) (bool, error) {
	return f.tries.Add(1) >= 3, nil
}
func (f *flakyLock) Release(context.Context, string) error { return nil }

type busyLock struct{}

func (busyLock) Acquire(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (busyLock) Release(context.Context, string) error                       { return nil }

func TestWait_RetriesUntilAcquired(t *testing.T) {
	t.Parallel()

	l := &flakyLock{}
	require.NoError(t, Wait(context.Background(), l, "k", time.Second, time.Millisecond))
	assert.EqualValues(t, 3, l.tries.Load())
}

func TestWait_GivesUpOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Wait(ctx, busyLock{}, "k", time.Second, 5*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNotAcquired))
}

func TestRedisLock_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	a, b := NewRedisLock(rdb), NewRedisLock(rdb)
	ok, err := a.Acquire(ctx, "it", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(ctx, "it", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx, "it"))
	ok, err = b.Acquire(ctx, "it", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-owner must not free the lock")

	require.NoError(t, a.Release(ctx, "it"))
	ok, err = b.Acquire(ctx, "it", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Release(ctx, "it"))
}
