// Copyright 2025 Certen Protocol
//
// Proof provider port: obtains a proof blob for a batch's public
// inputs. Implementations include an HTTP-backed prover service and a
// deterministic mock for tests and local simulation.

package prover

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a ProofError so callers (the circuit breaker, the
// orchestrator) can decide policy without string matching.
type Kind int

const (
	// Transient errors consume an attempt and are retried next tick.
	Transient Kind = iota
	// Permanent errors dead-letter the batch immediately.
	Permanent
	// Busy means the circuit breaker protecting this prover is open.
	Busy
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error wraps a proof-provider failure with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("prover: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError constructs a *Error of the given kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Provider obtains a proof for a batch. Implementations must return a
// *Error so callers can classify failures by Kind.
type Provider interface {
	GetProof(ctx context.Context, batchID uuid.UUID, publicInputs []byte) ([]byte, error)
}
