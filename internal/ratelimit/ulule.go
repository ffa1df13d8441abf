package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
)

// UluleLimiter adapts a ulule/limiter instance to the Allower seam. The rate
// is fixed at construction; the window and max arguments are ignored.
type UluleLimiter struct {
	L *limiter.Limiter
}

// NewUluleLimiter builds an adapter over a store with the given rate.
func NewUluleLimiter(store limiter.Store, window time.Duration, max int) UluleLimiter {
	return UluleLimiter{L: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)})}
}

// Allow consumes one token for the key.
func (u UluleLimiter) Allow(ctx context.Context, key string, _ time.Duration, _ int) (bool, int, time.Time, error) {
	if u.L == nil {
		return true, 0, time.Now(), nil
	}
	c, err := u.L.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !c.Reached, int(c.Remaining), time.Unix(c.Reset, 0), nil
}
