package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowLimiterAllowsWithinQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewFixedWindowLimiter(client, "test:rl", 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("request over quota should be denied")
	}
	// another key has its own quota
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("different key should be allowed")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := NewFixedWindowLimiter(client, "test:rl", 3, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow("1.2.3.4") {
		t.Fatal("expected deny when redis is down")
	}
}

func TestFixedWindowLimiterConfigValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Minute); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := NewFixedWindowLimiter(nil, "", 3, time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
}
