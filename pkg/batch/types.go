// Copyright 2025 Certen Protocol
//
// Batch entity: the aggregate root advanced by the orchestrator through
// discovery, proving, submission, and confirmation.

package batch

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Batch. It is a closed string-backed
// sum type; new values require updating the transition table in
// transitions.go.
type Status string

const (
	Discovered Status = "discovered"
	Proving    Status = "proving"
	Proved     Status = "proved"
	Submitting Status = "submitting"
	Submitted  Status = "submitted"
	Confirmed  Status = "confirmed"
	Failed     Status = "failed"
)

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	return s == Confirmed || s == Failed
}

// DAMode selects the data-availability strategy used to post a batch's
// payload to L1.
type DAMode string

const (
	Calldata DAMode = "calldata"
	Blob     DAMode = "blob"
)

// Tag is the single-byte encoding of the DA mode used in identity
// derivation. See identity.go.
func (m DAMode) Tag() (byte, error) {
	switch m {
	case Calldata:
		return 0x01, nil
	case Blob:
		return 0x02, nil
	default:
		return 0, ErrInvalidDAMode
	}
}

// Batch is the aggregate root persisted by pkg/storage and advanced by
// pkg/orchestrator. Field presence by status is enforced by the
// invariants documented on Validate.
type Batch struct {
	ID                uuid.UUID
	Status            Status
	ChainID           uint64
	BridgeAddress     [20]byte
	DataHash          [32]byte
	NewRoot           [32]byte
	DAMode            DAMode
	Payload           []byte
	Proof             []byte
	TxHash            *[32]byte
	BlobVersionedHash *[32]byte
	Attempts          uint32
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Diagnostic fields, never gate a transition. GasUsed and
	// Confirmations are set when a mined receipt is observed;
	// GasPriceWei is persisted but not set by the orchestrator.
	GasUsed        uint64
	GasPriceWei    uint64
	Confirmations  uint32
}

// Validate checks the per-status field-presence invariants from the data
// model: proof is absent before Proved, tx_hash is absent before
// Submitted.
func (b *Batch) Validate() error {
	proofAllowed := b.Status != Discovered && b.Status != Proving
	if !proofAllowed && b.Proof != nil {
		return ErrInvalidTransition
	}

	txHashAllowed := b.Status == Submitted || b.Status == Confirmed || b.Status == Failed
	if !txHashAllowed && b.TxHash != nil {
		return ErrInvalidTransition
	}
	return nil
}
