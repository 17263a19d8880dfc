package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter implements RateLimiter using Redis (GCRA via redis_rate)
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

// Allow checks if the request is allowed
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// MemoryRateLimiter is a per-key token bucket for single-instance deployments without Redis.
// Buckets that have refilled to capacity are swept once per period, so idle keys do not accumulate.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	burst      float64
	perToken   time.Duration
}

// full reports whether the bucket would be back at capacity at now
func (b *bucket) full(now time.Time) bool {
	return b.tokens+now.Sub(b.lastRefill).Seconds()/b.perToken.Seconds() >= b.burst
}

// sweep drops buckets indistinguishable from a fresh one
func (m *MemoryRateLimiter) sweep(now time.Time, period time.Duration) {
	if m.lastSweep.IsZero() {
		m.lastSweep = now
		return
	}
	if now.Sub(m.lastSweep) < period {
		return
	}
	m.lastSweep = now
	for key, b := range m.buckets {
		if b.full(now) {
			delete(m.buckets, key)
		}
	}
}

// NewMemoryRateLimiter creates a MemoryRateLimiter
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow refills the key's bucket at Rate/Period and takes one token
func (m *MemoryRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit: %+v", limit)
	}
	burst := float64(limit.Burst)
	if burst <= 0 {
		burst = float64(limit.Rate)
	}
	perToken := limit.Period / time.Duration(limit.Rate)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now, limit.Period)
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, lastRefill: now}
		m.buckets[key] = b
	}
	b.burst, b.perToken = burst, perToken
	elapsed := now.Sub(b.lastRefill)
	b.tokens = min(burst, b.tokens+elapsed.Seconds()/perToken.Seconds())
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return &Result{
			Allowed:    true,
			Remaining:  int(b.tokens),
			ResetAfter: time.Duration((burst - b.tokens) * float64(perToken)),
		}, nil
	}
	return &Result{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: time.Duration((burst - b.tokens) * float64(perToken)),
		RetryAfter: time.Duration((1 - b.tokens) * float64(perToken)),
	}, nil
}
