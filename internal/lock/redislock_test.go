package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client}, mr
}

func TestTryWithLockFailsFastAndReleases(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	key := lock.SubmitKey("s1", "PO-778", "lots")
	require.Equal(t, "orderdesk:lock:lots:s1:PO-778", key)

	err := locker.TryWithLock(ctx, key, time.Minute, func(ctx context.Context) error {
		require.True(t, mr.Exists(key))
		inner := locker.TryWithLock(ctx, key, time.Minute, func(context.Context) error { return nil })
		require.ErrorIs(t, inner, lock.ErrHeld)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.False(t, mr.Exists(key), "lock must be released after failure")

	require.NoError(t, locker.TryWithLock(ctx, key, time.Minute, func(context.Context) error { return nil }))
}

func TestExpiredHolderDoesNotReleaseNewLock(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	key := lock.SubmitKey("s1", "PO-778", "order")

	err := locker.TryWithLock(ctx, key, time.Second, func(context.Context) error {
		mr.FastForward(2 * time.Second)
		require.False(t, mr.Exists(key))
		require.NoError(t, mr.Set(key, "other-holder"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "other-holder", got)
}

func TestLockerWithoutRedis(t *testing.T) {
	err := lock.Locker{}.TryWithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
