package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

func TestUluleLimiterReachesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "test"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	lim := NewUluleLimiter(store, time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, _, err := lim.Allow(ctx, "redeem:user-1", time.Minute, 2)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, _, err := lim.Allow(ctx, "redeem:user-1", time.Minute, 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("third request should be limited")
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
}
