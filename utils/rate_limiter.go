package utils

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at rate per period.
type RateLimiter struct {
	rate       int
	period     time.Duration
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		period:     period,
		tokens:     rate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	refill := int(now.Sub(rl.lastRefill).Nanoseconds() * int64(rl.rate) / rl.period.Nanoseconds())
	if refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.rate {
			rl.tokens = rl.rate
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) Remaining() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.tokens
}
