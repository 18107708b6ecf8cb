// Copyright 2025 Certen Protocol

package resilience

import (
	"testing"
	"time"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := NewBreaker(&BreakerConfig{Threshold: 5, Cooldown: time.Minute, MaxCooldown: time.Hour})

	for i := 0; i < 4; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow before threshold, iteration %d", i)
		}
		b.Failure()
		if b.State() != Closed {
			t.Fatalf("expected Closed before threshold, got %s at iteration %d", b.State(), i)
		}
	}

	if !b.Allow() {
		t.Fatal("expected Allow on the threshold-tripping call")
	}
	b.Failure()

	if b.State() != Open {
		t.Fatalf("expected Open after 5 consecutive failures, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected Allow=false while Open")
	}
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	b := NewBreaker(&BreakerConfig{Threshold: 1, Cooldown: time.Millisecond, MaxCooldown: time.Second})

	b.Allow()
	b.Failure() // trips to Open
	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}

	time.Sleep(5 * time.Millisecond)
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after cooldown elapses, got %s", b.State())
	}

	if !b.Allow() {
		t.Fatal("expected the single HalfOpen probe to be allowed")
	}
	if b.Allow() {
		t.Error("expected only one in-flight probe at a time")
	}

	b.Success()
	if b.State() != Closed {
		t.Fatalf("expected Closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbeFailureReopensAndDoublesCooldown(t *testing.T) {
	b := NewBreaker(&BreakerConfig{Threshold: 1, Cooldown: time.Millisecond, MaxCooldown: time.Second})

	b.Allow()
	b.Failure() // Open, cooldown now doubled for next trip
	time.Sleep(5 * time.Millisecond)

	if !b.Allow() { // HalfOpen probe
		t.Fatal("expected probe to be allowed")
	}
	b.Failure()

	if b.State() != Open {
		t.Fatalf("expected Open after failed probe, got %s", b.State())
	}
	// 1ms doubled on the first trip (2ms, used by this re-open) and again
	// on the probe failure.
	if b.currentCooldown != 4*time.Millisecond {
		t.Errorf("cooldown after failed probe = %s, want 4ms", b.currentCooldown)
	}
}

func TestBreaker_BusyDoesNotConsumeAttempt(t *testing.T) {
	// This is an integration-level property exercised at the
	// orchestrator layer: Allow()==false must be distinguishable from
	// a Transient failure so callers know not to increment attempts.
	b := NewBreaker(&BreakerConfig{Threshold: 1, Cooldown: time.Hour, MaxCooldown: time.Hour})
	b.Allow()
	b.Failure()

	if b.Allow() {
		t.Fatal("expected breaker to stay Open within the cooldown window")
	}
}
