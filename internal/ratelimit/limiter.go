// Package ratelimit wraps the shared token-bucket rate limiter that guards
// the signaling endpoint (spec.md §6's RateLimited external collaborator).
// The original implementation runs one shared bucket for the whole
// process (refilled at MaxRate tokens/second, burst == MaxRate) rather
// than one bucket per client, and this package preserves that shape.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Limiter gates requests through a single process-wide token bucket.
type Limiter struct {
	enabled bool
	bucket  *rate.Limiter
}

// New builds a Limiter. When enabled is false, Allow always returns true
// (the signaling endpoint runs unthrottled, matching a config with
// ratelimit.enable = false).
func New(enabled bool, maxRatePerSecond float64) *Limiter {
	if !enabled || maxRatePerSecond <= 0 {
		return &Limiter{enabled: false}
	}
	return &Limiter{
		enabled: true,
		bucket:  rate.NewLimiter(rate.Limit(maxRatePerSecond), int(maxRatePerSecond)),
	}
}

// Allow reports whether the caller may proceed, consuming one token if so.
func (l *Limiter) Allow() bool {
	if !l.enabled {
		return true
	}
	return l.bucket.Allow()
}
