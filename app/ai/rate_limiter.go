package ai

import (
	"sync"
	"time"
)

const minRequestInterval = 2 * time.Second

// RateLimiter enforces a minimum gap between generation requests. The
// upstream API is shared account-wide, so all clients go through one
// limiter instance.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{minInterval: minRequestInterval}
}

// Wait blocks until enough time has passed since the last recorded
// request.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.IsZero() {
		return
	}

	elapsed := time.Since(r.last)
	if elapsed < r.minInterval {
		time.Sleep(r.minInterval - elapsed)
	}
}

// Touch records the completion of a request. Call after every network
// round trip, successful or not.
func (r *RateLimiter) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = time.Now()
}
