package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, client
}

func TestWithLockSerializesHolders(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var mu sync.Mutex
	var order []string
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})

	go func() {
		err := locker.WithLock(ctx, "outbox", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstEntered)
			<-releaseFirst
			return nil
		})
		require.NoError(t, err)
	}()

	<-firstEntered

	go func() {
		err := locker.WithLock(ctx, "outbox", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}()

	close(releaseFirst)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockReleasesAfterError(t *testing.T) {
	locker, client := newLocker(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := locker.WithLock(ctx, "outbox", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	// Key is gone, so the next holder acquires without waiting for the TTL.
	exists, err := client.Exists(ctx, "outbox").Result()
	require.NoError(t, err)
	require.Zero(t, exists)
}
