// Copyright 2025 Certen Protocol
//
// Blob-carrying (EIP-4844) strategy. Batch payload bytes are packed
// into a single canonical blob using the standard one-zero-byte-per-
// field-element encoding (each 32-byte BLS field element holds at
// most 31 data bytes so its integer value stays below the BLS12-381
// scalar modulus).

package da

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/holiman/uint256"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/l1"
)

// bytesPerFieldElement is the usable payload capacity per 32-byte BLS
// field element slot within a blob.
const bytesPerFieldElement = 31

// commitBlobABI describes the bridge method used for blob-mode
// submissions: the calldata carries only the proof and root, since the
// batch payload itself travels in the blob sidecar.
const commitBlobABI = `[{
	"type": "function",
	"name": "commitBatchBlob",
	"inputs": [
		{"name": "newRoot", "type": "bytes32"},
		{"name": "proof", "type": "bytes"},
		{"name": "blobVersionedHash", "type": "bytes32"}
	],
	"outputs": []
}]`

// BlobStrategy posts batch data as an EIP-4844 blob sidecar and
// references it on-chain via its versioned hash.
type BlobStrategy struct {
	client      *l1.Client
	submitter   *l1.Submitter
	bridge      common.Address
	contractABI abi.ABI
	archiver    *Archiver
}

// BlobStrategyOption configures a BlobStrategy at construction time.
type BlobStrategyOption func(*BlobStrategy)

// WithBlobArchiver attaches an optional best-effort archive of the raw
// blob, posted after every successful broadcast (spec.md §4.5). A nil
// archiver (da.archiver_url unset) disables archival entirely.
func WithBlobArchiver(a *Archiver) BlobStrategyOption {
	return func(s *BlobStrategy) { s.archiver = a }
}

// NewBlobStrategy parses commitBlobABI once at construction time.
func NewBlobStrategy(client *l1.Client, submitter *l1.Submitter, bridge common.Address, opts ...BlobStrategyOption) (*BlobStrategy, error) {
	parsed, err := abi.JSON(strings.NewReader(commitBlobABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse commitBatchBlob ABI: %w", err)
	}
	s := &BlobStrategy{client: client, submitter: submitter, bridge: bridge, contractABI: parsed}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ Strategy = (*BlobStrategy)(nil)

// packBlob encodes payload into a canonical blob, zero-padding the
// final partial field element and any unused trailing elements.
func packBlob(payload []byte) (*kzg4844.Blob, error) {
	var blob kzg4844.Blob
	maxBytes := (len(blob) / 32) * bytesPerFieldElement
	if len(payload) > maxBytes {
		return nil, fmt.Errorf("payload of %d bytes exceeds single-blob capacity of %d bytes", len(payload), maxBytes)
	}

	srcOffset := 0
	for elem := 0; elem*32 < len(blob) && srcOffset < len(payload); elem++ {
		dst := blob[elem*32 : elem*32+32]
		n := bytesPerFieldElement
		if remaining := len(payload) - srcOffset; remaining < n {
			n = remaining
		}
		copy(dst[1:1+n], payload[srcOffset:srcOffset+n])
		srcOffset += n
	}
	return &blob, nil
}

// Submit builds commitBatchBlob calldata (root + proof + versioned
// hash), a blob sidecar carrying the batch payload, prices and signs
// an EIP-4844 transaction, and broadcasts it.
func (s *BlobStrategy) Submit(ctx context.Context, b *batch.Batch) (*SubmitResult, error) {
	if b.DAMode != batch.Blob {
		return nil, NewError(Permanent, ErrBlobRequiresSidecar)
	}

	blob, err := packBlob(b.Payload)
	if err != nil {
		return nil, NewError(Permanent, err)
	}

	commitment, err := kzg4844.BlobToCommitment(blob)
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to compute blob commitment: %w", err))
	}
	proof, err := kzg4844.ComputeBlobProof(blob, commitment)
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to compute blob proof: %w", err))
	}

	sidecar := &types.BlobTxSidecar{
		Blobs:       []kzg4844.Blob{*blob},
		Commitments: []kzg4844.Commitment{commitment},
		Proofs:      []kzg4844.Proof{proof},
	}
	blobHashes := sidecar.BlobHashes()
	if len(blobHashes) != 1 {
		return nil, NewError(Permanent, fmt.Errorf("expected exactly one blob hash, got %d", len(blobHashes)))
	}
	versionedHash := blobHashes[0]

	callData, err := s.contractABI.Pack("commitBatchBlob", b.NewRoot, b.Proof, versionedHash)
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to pack commitBatchBlob call: %w", err))
	}

	blobFeeCap, tooHigh, err := s.submitter.ComputeBlobFeeCap(ctx)
	if err != nil {
		return nil, NewError(Transient, err)
	}
	if tooHigh {
		return nil, NewError(FeeTooHigh, fmt.Errorf("blob fee cap %s exceeds configured ceiling", blobFeeCap))
	}

	nonce, err := s.submitter.NextNonce(ctx)
	if err != nil {
		return nil, NewError(Transient, err)
	}

	fees, err := s.submitter.ComputeFees(ctx)
	if err != nil {
		s.submitter.ReleaseNonce()
		return nil, NewError(Transient, err)
	}

	gas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.submitter.Address(),
		To:   &s.bridge,
		Data: callData,
	})
	if err != nil {
		s.submitter.ReleaseNonce()
		return nil, NewError(Permanent, fmt.Errorf("gas estimation reverted: %w", err))
	}
	gas = gas + gas/5

	chainID, overflow := uint256.FromBig(s.client.ChainID())
	if overflow {
		s.submitter.ReleaseNonce()
		return nil, NewError(Permanent, fmt.Errorf("chain id %s overflows uint256", s.client.ChainID()))
	}
	gasFeeCap, _ := uint256.FromBig(fees.GasFeeCap)
	gasTipCap, _ := uint256.FromBig(fees.GasTipCap)
	blobFeeCapU256, _ := uint256.FromBig(blobFeeCap)

	bridge := s.bridge
	tx := types.NewTx(&types.BlobTx{
		ChainID:    chainID,
		Nonce:      nonce,
		GasTipCap:  gasTipCap,
		GasFeeCap:  gasFeeCap,
		Gas:        gas,
		To:         bridge,
		Data:       callData,
		BlobFeeCap: blobFeeCapU256,
		BlobHashes: []common.Hash{versionedHash},
		Sidecar:    sidecar,
	})

	hash, err := s.submitter.Submit(ctx, tx)
	if err != nil {
		s.submitter.ReleaseNonce()
		return nil, NewError(Transient, err)
	}
	s.submitter.CommitNonce()

	var vh [32]byte
	copy(vh[:], versionedHash[:])

	if s.archiver != nil {
		s.archiver.ArchiveBlob(ctx, vh, blob[:])
	}

	return &SubmitResult{TxHash: hash, BlobVersionedHash: &vh}, nil
}

// CheckConfirmation delegates to the underlying L1 client.
func (s *BlobStrategy) CheckConfirmation(ctx context.Context, txHash common.Hash) (l1.Confirmation, error) {
	return s.client.CheckConfirmation(ctx, txHash)
}
