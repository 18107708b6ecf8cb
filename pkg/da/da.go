// Copyright 2025 Certen Protocol
//
// Package da implements the two data-availability strategies a batch
// can be submitted under (calldata and blob) behind a single
// Strategy port, plus a best-effort archiver fan-out.

package da

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/l1"
)

// Kind classifies a DA-layer error the same way pkg/prover does, so
// the orchestrator can apply one retry/circuit-breaker policy across
// both port types.
type Kind int

const (
	Transient Kind = iota
	Permanent
	// FeeTooHigh means the computed fee (blob or gas) exceeds the
	// operator's configured ceiling; the orchestrator should back off
	// and retry later rather than treat it as a hard failure.
	FeeTooHigh
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case FeeTooHigh:
		return "fee_too_high"
	default:
		return "unknown"
	}
}

// Error wraps a DA-layer failure with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("da: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// ErrBlobRequiresSidecar is returned when a blob strategy is invoked
// on a batch whose mode is not batch.Blob.
var ErrBlobRequiresSidecar = errors.New("da: blob strategy requires a blob-mode batch")

// SubmitResult is the outcome of broadcasting a batch's transaction.
type SubmitResult struct {
	TxHash common.Hash
	// BlobVersionedHash is populated only for blob-strategy
	// transactions, for the orchestrator to persist on the batch
	// alongside TxHash.
	BlobVersionedHash *[32]byte
}

// Strategy builds, prices, signs, broadcasts and confirms transactions
// for one DA mode. Nonce assignment and signing happen inside Submit
// so the strategy can commit or release the submitter's nonce
// atomically with fee computation and broadcast.
type Strategy interface {
	// Submit constructs, prices, signs and broadcasts the L1
	// transaction that carries b's proof and payload.
	Submit(ctx context.Context, b *batch.Batch) (*SubmitResult, error)
	// CheckConfirmation reports the on-chain status of a previously
	// broadcast transaction.
	CheckConfirmation(ctx context.Context, txHash common.Hash) (l1.Confirmation, error)
}
