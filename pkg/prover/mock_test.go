// Copyright 2025 Certen Protocol

package prover

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMockProver_Deterministic(t *testing.T) {
	p := NewMockProver(0)
	id := uuid.New()

	proof1, err := p.GetProof(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}
	proof2, err := p.GetProof(context.Background(), id, nil)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}

	if string(proof1) != string(proof2) {
		t.Error("expected deterministic proof for the same batch id")
	}

	other, err := p.GetProof(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}
	if string(other) == string(proof1) {
		t.Error("expected different proofs for different batch ids")
	}
}

func TestMockProver_RespectsContextCancellation(t *testing.T) {
	p := NewMockProver(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetProof(ctx, uuid.New(), nil)
	perr, ok := err.(*Error)
	if !ok || perr.Kind != Transient {
		t.Errorf("expected Transient *Error, got %v", err)
	}
}
