package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, 2*time.Second)
}

func TestWithLockRunsAndReleases(t *testing.T) {
	mr, locker := newTestLocker(t)
	key := AppointmentLockKey(uuid.New())

	ran := false
	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key), "lock key should exist inside the critical section")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(key), "lock key should be released")
}

func TestWithLockRejectsSecondHolder(t *testing.T) {
	_, locker := newTestLocker(t)
	key := AppointmentLockKey(uuid.New())

	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		inner := locker.WithLock(ctx, key, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockReturnsCallbackError(t *testing.T) {
	mr, locker := newTestLocker(t)
	key := AppointmentLockKey(uuid.New())
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	mr, locker := newTestLocker(t)
	key := AppointmentLockKey(uuid.New())

	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		// simulate ttl expiry and takeover by another process
		require.NoError(t, mr.Set(key, "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
