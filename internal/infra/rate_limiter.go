package infra

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
// Thread-safe and suitable for concurrent API calls.
type RateLimiter struct {
	mu          sync.Mutex
	tokens      float64
	maxTokens   float64
	refillRate  float64 // tokens per second
	lastRefill  time.Time
	lastRequest time.Time
}

// NewRateLimiter creates a new rate limiter.
// maxRequests: maximum burst size; perSecond: refill rate.
func NewRateLimiter(maxRequests int, perSecond float64) *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		tokens:      float64(maxRequests),
		maxTokens:   float64(maxRequests),
		refillRate:  perSecond,
		lastRefill:  now,
		lastRequest: now.Add(-time.Hour), // allow immediate first request
	}
}

// Wait blocks until a token is available.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	for r.tokens < 1 {
		waitTime := time.Duration(float64(time.Second) / r.refillRate)
		r.mu.Unlock()
		time.Sleep(waitTime)
		r.mu.Lock()
		r.refill()
	}

	r.tokens--
	r.lastRequest = time.Now()
}

// TryAcquire attempts to acquire a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		r.lastRequest = time.Now()
		return true
	}
	return false
}

// refill adds tokens based on elapsed time. Must be called with mutex held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate

	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	r.lastRefill = now
}

// MEXC spot limits are generous for signed endpoints; these buckets stay
// well under them to avoid IP bans.
var (
	mexcOrderLimiter   *RateLimiter
	mexcAccountLimiter *RateLimiter
	mexcMarketLimiter  *RateLimiter
	rateLimiterOnce    sync.Once
)

// GetOrderLimiter returns the rate limiter for order endpoints.
func GetOrderLimiter() *RateLimiter {
	rateLimiterOnce.Do(initMexcLimiters)
	return mexcOrderLimiter
}

// GetAccountLimiter returns the rate limiter for account endpoints.
func GetAccountLimiter() *RateLimiter {
	rateLimiterOnce.Do(initMexcLimiters)
	return mexcAccountLimiter
}

// GetMarketLimiter returns the rate limiter for market data endpoints.
func GetMarketLimiter() *RateLimiter {
	rateLimiterOnce.Do(initMexcLimiters)
	return mexcMarketLimiter
}

func initMexcLimiters() {
	mexcOrderLimiter = NewRateLimiter(5, 10)   // 10 req/s, burst 5
	mexcAccountLimiter = NewRateLimiter(5, 10) // 10 req/s, burst 5
	mexcMarketLimiter = NewRateLimiter(10, 20) // 20 req/s, burst 10
}
