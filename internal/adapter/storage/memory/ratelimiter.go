package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"wallet-service/internal/core/ports"

	"golang.org/x/time/rate"
)

const sweepEvery = 1024

// RateLimiter implements ports.RateLimiter in process with one token bucket
// per key. A bucket holds limit tokens and refills fully over window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	window   time.Duration
}

// NewRateLimiter creates an empty in-process rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from the bucket for key. A non-positive limit
// means the key is not limited.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	if limit <= 0 {
		return &ports.RateLimitResult{Allowed: true}, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok || b.window != window || int64(b.limiter.Burst()) != limit {
		every := window / time.Duration(max(limit, 1))
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(every), int(limit)),
			window:  window,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := int64(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	// Time until the bucket is full again.
	missing := float64(limit) - tokens
	resetAt := now
	if missing > 0 && b.limiter.Limit() > 0 {
		resetAt = now.Add(time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second)))
	}

	return &ports.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   int64(math.Ceil(float64(resetAt.UnixNano()) / float64(time.Second))),
	}, nil
}

// sweep drops buckets idle for longer than their window; they would be full anyway.
func (l *RateLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > b.window {
			delete(l.buckets, k)
		}
	}
}

var _ ports.RateLimiter = (*RateLimiter)(nil)
