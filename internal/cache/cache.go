package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a small JSON read-through cache over Redis. A nil Cache or a nil
// client degrades to pass-through so callers never branch on availability.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Cache {
	return &Cache{rdb: rdb, prefix: prefix}
}

// Get unmarshals the cached value for key into dest. The second return is
// false on miss or any transport error; a broken cache reads as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores v under key for ttl. Errors are swallowed; the source of truth
// is always the database.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil || c.rdb == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Invalidate drops one or more keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	_ = c.rdb.Del(ctx, full...).Err()
}

// KeyShippingZones is the cache key for the full shipping rate table.
const KeyShippingZones = "shipping:zones"

// KeyCouponList is the cache key for the public coupon listing.
const KeyCouponList = "coupons:list"
