// Copyright 2025 Certen Protocol

package resilience

import (
	"math/rand"
	"time"
)

// Policy computes exponential backoff with jitter, bounded by
// MaxBackoff and the per-batch persisted attempt count (enforced by
// callers against MaxAttempts, not by Policy itself).
type Policy struct {
	Base        time.Duration
	MaxBackoff  time.Duration
	MaxAttempts uint32
}

// DefaultPolicy matches spec defaults: max_retries=5.
func DefaultPolicy() Policy {
	return Policy{
		Base:        500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxAttempts: 5,
	}
}

// Backoff returns base * 2^attempt with +-20% jitter, capped at
// MaxBackoff. attempt is zero-based.
func (p Policy) Backoff(attempt uint32) time.Duration {
	d := p.Base << attempt // base * 2^attempt
	if d <= 0 || d > p.MaxBackoff {
		d = p.MaxBackoff
	}

	jitterRange := float64(d) * 0.2
	jitter := (rand.Float64()*2 - 1) * jitterRange
	d = time.Duration(float64(d) + jitter)

	if d < 0 {
		d = 0
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Exhausted reports whether attempts has exceeded MaxAttempts
// (attempts == MaxAttempts is not yet exhausted), meaning the batch must be dead-lettered on its next
// persisted write.
func (p Policy) Exhausted(attempts uint32) bool {
	return attempts > p.MaxAttempts
}
