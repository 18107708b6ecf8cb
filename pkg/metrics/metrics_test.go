// Copyright 2025 Certen Protocol

package metrics

import "testing"

func TestNew_RegistersAllCollectors(t *testing.T) {
	r := New()

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	// The unlabeled PendingBatches gauge and BatchAttempts histogram are
	// always gathered; the labeled vectors appear only once a child exists.
	if len(families) != 2 {
		t.Fatalf("expected 2 metric families before any observation, got %d", len(families))
	}

	r.Transitions.WithLabelValues("discovered", "proving").Inc()
	r.PendingBatches.Set(3)

	families, err = r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather after observation: %v", err)
	}
	if len(families) != 3 {
		t.Fatalf("expected 3 metric families after observation, got %d", len(families))
	}
}

func TestBreakerStateValue(t *testing.T) {
	cases := map[string]float64{"closed": 0, "half_open": 1, "open": 2, "bogus": -1}
	for state, want := range cases {
		if got := BreakerStateValue(state); got != want {
			t.Errorf("BreakerStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}
