package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit is a token bucket budget: Requests per Window with Burst headroom.
type Limit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (l Limit) every() rate.Limit {
	if l.Requests <= 0 {
		l.Requests = 1
	}
	if l.Window <= 0 {
		l.Window = time.Second
	}
	return rate.Every(l.Window / time.Duration(l.Requests))
}

type bucket struct {
	limiter *rate.Limiter
	touched time.Time
}

// KeyedLimiter keeps an independent bucket per key, typically an endpoint scope plus the
// client address. Buckets idle for longer than the idle window are swept.
type KeyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	every     rate.Limit
	burst     int
	idle      time.Duration
	nextSweep time.Time
	clock     func() time.Time
}

// NewKeyedLimiter builds a limiter applying limit to every key.
func NewKeyedLimiter(limit Limit, idle time.Duration) *KeyedLimiter {
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		every:   limit.every(),
		burst:   limit.Burst,
		idle:    idle,
		clock:   time.Now,
	}
}

// Allow consumes one token from key's bucket and reports whether one was available.
func (l *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		key = "anonymous"
	}

	l.mu.Lock()
	now := l.clock()
	if l.nextSweep.IsZero() {
		l.nextSweep = now.Add(l.idle)
	}
	if !now.Before(l.nextSweep) {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.touched = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Len reports how many keys are currently tracked.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.touched) > l.idle {
			delete(l.buckets, key)
		}
	}
	l.nextSweep = now.Add(l.idle)
}
