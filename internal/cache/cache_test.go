package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/cache"
)

type zonePayload struct {
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
}

func TestCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, "bazaar:")
	ctx := context.Background()

	in := []zonePayload{{Name: "metro", Prefixes: []string{"4000", "4001"}}}
	c.Set(ctx, cache.KeyShippingZones, in, time.Minute)

	var out []zonePayload
	require.True(t, c.Get(ctx, cache.KeyShippingZones, &out))
	require.Equal(t, in, out)
}

func TestCacheMissAfterInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, "bazaar:")
	ctx := context.Background()

	c.Set(ctx, cache.KeyCouponList, []string{"SAVE20"}, time.Minute)
	c.Invalidate(ctx, cache.KeyCouponList)

	var out []string
	require.False(t, c.Get(ctx, cache.KeyCouponList, &out))
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	var out string
	require.False(t, c.Get(ctx, "k", &out))
	c.Invalidate(ctx, "k")
}
