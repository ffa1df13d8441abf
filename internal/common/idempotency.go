package common

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore guards duplicate checkout submissions. A key is claimed
// once; replays within the TTL surface the original response reference.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Claim attempts to register the key. It returns true when the caller owns
// the key and should proceed, false when a prior request already claimed it.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	if s == nil || s.rdb == nil || key == "" {
		return true, nil
	}
	return s.rdb.SetNX(ctx, "idem:"+key, "pending", s.ttl).Result()
}

// Record stores the result reference (order id) for a claimed key so
// replayed requests can return the same order.
func (s *IdempotencyStore) Record(ctx context.Context, key, ref string) error {
	if s == nil || s.rdb == nil || key == "" {
		return nil
	}
	return s.rdb.Set(ctx, "idem:"+key, ref, s.ttl).Err()
}

// Lookup returns the recorded reference for a key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (string, error) {
	if s == nil || s.rdb == nil || key == "" {
		return "", nil
	}
	v, err := s.rdb.Get(ctx, "idem:"+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

// Release drops a claimed key so a failed request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) {
	if s == nil || s.rdb == nil || key == "" {
		return
	}
	_ = s.rdb.Del(context.WithoutCancel(ctx), "idem:"+key).Err()
}
