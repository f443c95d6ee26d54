// Package ratelimit implements the global token-bucket gating externally
// triggered operations (hot-reload ingestion, status queries), grounded on
// core/security.py's RateLimiter and threaded through as an explicit
// dependency rather than a package-level singleton (design note 9.3).
package ratelimit

import (
	"sync"
	"time"
)

// DefaultRate is the default refill rate: 600 tokens per minute.
const DefaultRate = 600

// Bucket is a simple token bucket: capacity refills at a fixed rate per
// minute, burst allows up to twice the per-minute rate to accumulate.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
	now        func() time.Time
}

// New builds a Bucket refilling at ratePerMinute tokens/minute with a burst
// capacity of 2x that rate. ratePerMinute of zero uses DefaultRate.
func New(ratePerMinute int) *Bucket {
	if ratePerMinute <= 0 {
		ratePerMinute = DefaultRate
	}
	capacity := float64(ratePerMinute * 2)
	return &Bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: float64(ratePerMinute) / 60.0,
		last:       time.Now(),
		now:        time.Now,
	}
}

// Allow reports whether one token is available and, if so, consumes it.
func (b *Bucket) Allow() bool {
	return b.AllowN(1)
}

// AllowN reports whether n tokens are available and, if so, consumes them.
func (b *Bucket) AllowN(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Available returns the current (fractional) token count, for diagnostics.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	tokens := b.tokens + elapsed*b.refillRate
	if tokens > b.capacity {
		tokens = b.capacity
	}
	return tokens
}
