// Package circuit provides a small circuit breaker for best-effort sinks.
package circuit

import (
	"sync"
	"time"
)

// Breaker opens after a run of consecutive failures and stays open for a
// cooldown period. While open, Allow reports false so callers can drop work
// instead of hammering an unhealthy dependency. After the cooldown the next
// Allow lets one attempt through (half-open).
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	failures  int
	openUntil time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether the caller should attempt the operation.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if time.Now().After(b.openUntil) {
		// Half-open: permit a probe without resetting the failure count so
		// another failure re-opens immediately.
		b.openUntil = time.Now().Add(b.cooldown)
		return true
	}
	return false
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// RecordFailure counts a failure, opening the breaker once the threshold is
// reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
	}
}
