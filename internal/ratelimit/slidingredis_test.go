package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newWindow(t *testing.T) (SlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{Client: client, Prefix: "test:"}, mr
}

func TestSlidingWindowCountsAndRecovers(t *testing.T) {
	limiter, mr := newWindow(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, 1-i, remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowNilClientAlwaysAllows(t *testing.T) {
	allowed, _, _, err := SlidingWindow{}.Allow(context.Background(), "key", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}
