package utils

import (
	"time"
)

// RateLimiter paces outbound calls to the scraping platform API using a
// token bucket refilled at rate tokens per interval.
type RateLimiter struct {
	rate     int
	interval time.Duration
	tokens   chan struct{}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		rate:     rate,
		interval: interval,
		tokens:   make(chan struct{}, rate),
	}

	// Fill the token bucket initially
	for i := 0; i < rate; i++ {
		rl.tokens <- struct{}{}
	}

	go rl.refill()

	return rl
}

// Wait blocks until a token is available.
func (rl *RateLimiter) Wait() {
	<-rl.tokens
}

// TryWait attempts to get a token without blocking.
func (rl *RateLimiter) TryWait() bool {
	select {
	case <-rl.tokens:
		return true
	default:
		return false
	}
}

// refill refills the token bucket at the specified rate.
func (rl *RateLimiter) refill() {
	ticker := time.NewTicker(rl.interval / time.Duration(rl.rate))
	defer ticker.Stop()

	for range ticker.C {
		select {
		case rl.tokens <- struct{}{}:
		default:
			// Bucket is full, skip
		}
	}
}
