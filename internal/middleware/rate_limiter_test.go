package middleware

import (
	"testing"
	"time"
)

func fixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

func TestKeyedLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewKeyedLimiter(Limit{Requests: 5, Window: time.Minute, Burst: 2}, time.Hour)
	limiter.clock = fixedClock(&now)

	if !limiter.Allow("generate|10.0.0.1") || !limiter.Allow("generate|10.0.0.1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if limiter.Allow("generate|10.0.0.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("generate|10.0.0.2") {
		t.Fatal("expected a different key to have its own budget")
	}

	now = now.Add(12 * time.Second)
	if !limiter.Allow("generate|10.0.0.1") {
		t.Fatal("expected a token to refill after one interval")
	}
}

func TestKeyedLimiterSweepsIdleKeys(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewKeyedLimiter(Limit{Requests: 1, Window: time.Second, Burst: 1}, time.Minute)
	limiter.clock = fixedClock(&now)

	limiter.Allow("a")
	limiter.Allow("b")
	if got := limiter.Len(); got != 2 {
		t.Fatalf("expected two keys, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	limiter.Allow("c")
	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected idle keys to be swept, got %d", got)
	}
}

func TestKeyedLimiterDefaults(t *testing.T) {
	limiter := NewKeyedLimiter(Limit{}, 0)
	if !limiter.Allow("") {
		t.Fatal("expected the first request to be allowed")
	}
	if limiter.Allow("") {
		t.Fatal("expected a one token burst by default")
	}
}
