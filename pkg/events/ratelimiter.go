package events

import (
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting per endpoint.
type RateLimiter struct {
	buckets      map[string]*tokenBucket
	mutex        sync.RWMutex
	maxTokens    int
	refillPeriod time.Duration
}

type tokenBucket struct {
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
	mutex        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*tokenBucket),
		maxTokens:    maxRequests,
		refillPeriod: period,
	}
}

// Allow checks if a delivery is allowed for the given endpoint.
func (rl *RateLimiter) Allow(endpointID string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[endpointID]
	if !exists {
		bucket = &tokenBucket{
			tokens:       rl.maxTokens,
			maxTokens:    rl.maxTokens,
			refillPeriod: rl.refillPeriod,
			lastRefill:   time.Now(),
		}
		rl.buckets[endpointID] = bucket
	}
	rl.mutex.Unlock()

	return bucket.take()
}

func (tb *tokenBucket) take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed >= tb.refillPeriod {
		periods := int(elapsed / tb.refillPeriod)
		tb.tokens = min(tb.tokens+periods, tb.maxTokens)
		tb.lastRefill = tb.lastRefill.Add(time.Duration(periods) * tb.refillPeriod)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Reset resets the rate limiter for an endpoint.
func (rl *RateLimiter) Reset(endpointID string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	delete(rl.buckets, endpointID)
}
