// Copyright 2025 Certen Protocol

package prover

import (
	"bytes"
	"context"
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
)

// MockProver sleeps for a configured delay and returns a deterministic
// dummy proof derived from the batch id. Used in tests and for
// integration simulation when prover.url is omitted from config.
type MockProver struct {
	Delay time.Duration
	// ProofLen is the length of the dummy proof, filled by repeating
	// sha256(batch_id). Defaults to 32 (a single digest) when zero.
	ProofLen int
}

// NewMockProver constructs a MockProver with the given artificial delay.
func NewMockProver(delay time.Duration) *MockProver {
	return &MockProver{Delay: delay}
}

func (p *MockProver) GetProof(ctx context.Context, batchID uuid.UUID, publicInputs []byte) ([]byte, error) {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, NewError(Transient, ctx.Err())
		case <-timer.C:
		}
	}

	digest := sha256.Sum256(batchID[:])

	length := p.ProofLen
	if length <= 0 {
		length = len(digest)
	}

	var buf bytes.Buffer
	for buf.Len() < length {
		buf.Write(digest[:])
	}
	return buf.Bytes()[:length], nil
}

var _ Provider = (*MockProver)(nil)
