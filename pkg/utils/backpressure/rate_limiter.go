package backpressure

import (
	"sync"
	"time"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// TokenBucketLimiter allows rate operations per second with bursts of up to burst
type TokenBucketLimiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1.0
	}
	if burst <= 0 {
		burst = 1
	}

	return &TokenBucketLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// Allow checks if a single operation is allowed
func (tb *TokenBucketLimiter) Allow() bool {
	return tb.AllowN(1)
}

// AllowN checks if n operations are allowed
func (tb *TokenBucketLimiter) AllowN(n int) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// refill adds tokens for the time elapsed since the last call
func (tb *TokenBucketLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastUpdate = now
}

// Limit returns the refill rate per second
func (tb *TokenBucketLimiter) Limit() float64 {
	return tb.rate
}

// Burst returns the burst capacity
func (tb *TokenBucketLimiter) Burst() int {
	return tb.burst
}

// KeyedRateLimiter keeps one token bucket per key, e.g. per client address
type KeyedRateLimiter struct {
	rate     float64
	burst    int
	limiters map[string]*TokenBucketLimiter
	mutex    sync.Mutex
	log      *logger.Logger
}

func NewKeyedRateLimiter(rate float64, burst int) *KeyedRateLimiter {
	l := &KeyedRateLimiter{
		rate:     rate,
		burst:    burst,
		limiters: make(map[string]*TokenBucketLimiter),
		log:      logger.GetLogger("rate_limiter.keyed"),
	}
	l.log.Infof("Rate limiter created with rate=%.2f, burst=%d per client", rate, burst)
	return l
}

// Allow takes one token from the bucket of key
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mutex.Lock()
	limiter, exists := k.limiters[key]
	if !exists {
		limiter = NewTokenBucketLimiter(k.rate, k.burst)
		k.limiters[key] = limiter
	}
	k.mutex.Unlock()

	return limiter.Allow()
}
