// Copyright 2025 Certen Protocol
//
// Circuit breaker: a generic wrapper usable around any fallible port
// call. State is scoped per breaker instance and guarded by a mutex.

package resilience

import (
	"log"
	"sync"
	"time"
)

// State is the circuit breaker's closed sum type.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// BreakerConfig configures threshold/cooldown behavior.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that trips the
	// breaker from Closed to Open.
	Threshold int
	// Cooldown is the initial Open duration; it doubles on each
	// consecutive HalfOpen probe failure, up to MaxCooldown.
	Cooldown time.Duration
	// MaxCooldown caps the doubling cooldown.
	MaxCooldown time.Duration
	Logger      *log.Logger
}

// DefaultBreakerConfig matches spec defaults: threshold 5.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Threshold:   5,
		Cooldown:    5 * time.Second,
		MaxCooldown: 5 * time.Minute,
		Logger:      log.New(log.Writer(), "[Resilience/breaker] ", log.LstdFlags),
	}
}

// Breaker implements Closed -> Open -> HalfOpen -> {Closed, Open}.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig

	state             State
	consecutiveFails  int
	openUntil         time.Time
	currentCooldown   time.Duration
	halfOpenInFlight  bool
}

// NewBreaker constructs a Breaker in the Closed state.
func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Resilience/breaker] ", log.LstdFlags)
	}
	return &Breaker{
		cfg:             *cfg,
		state:           Closed,
		currentCooldown: cfg.Cooldown,
	}
}

// State returns the breaker's current state, resolving an expired
// Open deadline into HalfOpen as a side effect (matching the
// state-machine semantics: Open automatically becomes HalfOpen once
// now >= until).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked()
	return b.state
}

func (b *Breaker) resolveLocked() {
	if b.state == Open && !time.Now().Before(b.openUntil) {
		b.state = HalfOpen
		b.halfOpenInFlight = false
	}
}

// Allow reports whether a call may proceed, and reserves the single
// HalfOpen probe slot if this call is that probe. Busy callers must
// not invoke Success/Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default: // Open
		return false
	}
}

// Success records a successful call, closing the breaker and
// resetting the failure counter and cooldown.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFails = 0
	b.currentCooldown = b.cfg.Cooldown
	b.halfOpenInFlight = false
}

// Failure records a failed call. In Closed it increments the
// consecutive-failure counter, tripping Open at Threshold. In
// HalfOpen a failed probe re-opens the breaker and doubles the
// cooldown up to MaxCooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.tripLocked()
	default:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.Threshold {
			b.tripLocked()
		}
	}
}

func (b *Breaker) tripLocked() {
	b.state = Open
	b.openUntil = time.Now().Add(b.currentCooldown)
	b.halfOpenInFlight = false
	b.currentCooldown *= 2
	if b.currentCooldown > b.cfg.MaxCooldown {
		b.currentCooldown = b.cfg.MaxCooldown
	}
}
