// Copyright 2025 Certen Protocol

package batch

import "testing"

func newTestBatch(status Status) *Batch {
	return &Batch{Status: status}
}

func TestAdvance_LegalForwardPath(t *testing.T) {
	b := newTestBatch(Discovered)

	path := []Status{Proving, Proved, Submitting, Submitted, Confirmed}
	for _, to := range path {
		if err := b.Advance(to); err != nil {
			t.Fatalf("Advance(%s -> %s): %v", b.Status, to, err)
		}
	}

	if b.Status != Confirmed {
		t.Errorf("expected Confirmed, got %s", b.Status)
	}
}

func TestAdvance_RejectsSkippedState(t *testing.T) {
	b := newTestBatch(Discovered)
	if err := b.Advance(Submitted); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvance_RejectsFromTerminal(t *testing.T) {
	for _, terminal := range []Status{Confirmed, Failed} {
		b := newTestBatch(terminal)
		if err := b.Advance(Proving); err != ErrInvalidTransition {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", terminal, err)
		}
	}
}

func TestAdvance_FailReachableFromAnyNonTerminal(t *testing.T) {
	for _, s := range []Status{Discovered, Proving, Proved, Submitting, Submitted} {
		b := newTestBatch(s)
		if err := b.Advance(Failed); err != nil {
			t.Errorf("%s -> Failed: %v", s, err)
		}
	}
}

func TestFail_Idempotent(t *testing.T) {
	b := newTestBatch(Confirmed)
	b.Fail("should be a no-op")
	if b.Status != Confirmed {
		t.Errorf("Fail must not move a terminal batch, got %s", b.Status)
	}

	b2 := newTestBatch(Proving)
	b2.Fail("boom")
	if b2.Status != Failed || b2.LastError != "boom" {
		t.Errorf("expected Failed/boom, got %s/%s", b2.Status, b2.LastError)
	}
}

func TestValidate_ProofAbsentBeforeProved(t *testing.T) {
	b := newTestBatch(Proving)
	b.Proof = []byte{0xBE, 0xEF}
	if err := b.Validate(); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition for proof present before Proved, got %v", err)
	}
}

func TestValidate_TxHashAbsentBeforeSubmitted(t *testing.T) {
	b := newTestBatch(Proved)
	var h [32]byte
	b.TxHash = &h
	if err := b.Validate(); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition for tx_hash present before Submitted, got %v", err)
	}
}
