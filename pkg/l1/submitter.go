// Copyright 2025 Certen Protocol
//
// Submitter owns signing, nonce assignment and fee computation for
// transactions broadcast to L1. It mirrors the teacher's
// pkg/ethereum.Client.SendContractTransaction flow (parse key, fetch
// nonce, compute fee, sign, send) but generalizes it to accept an
// already-built, unsigned transaction from a DA strategy.

package l1

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// FeePolicy selects how gas_fee_cap/gas_tip_cap are derived from the
// chain head.
type FeePolicy string

const (
	// FeePolicyStandard uses base_fee*2 + suggested tip.
	FeePolicyStandard FeePolicy = "standard"
	// FeePolicyAggressive uses base_fee*3 + 2x suggested tip, for
	// batches approaching their deadline.
	FeePolicyAggressive FeePolicy = "aggressive"
	// FeePolicyFixed uses operator-configured caps verbatim.
	FeePolicyFixed FeePolicy = "fixed"
)

// ErrAlreadyKnown names the node's rejection of a broadcast it already
// has in its pool. Submit does not return it: it treats that response
// as a successful send and returns the transaction hash.
var ErrAlreadyKnown = errors.New("l1: transaction already known")

// ErrNonceTooLow indicates the assigned nonce has already been mined,
// typically because a previous attempt with the same nonce succeeded
// under a different hash (fee bump race).
var ErrNonceTooLow = errors.New("l1: nonce too low")

// Fees holds the computed fee cap and tip cap for a transaction.
type Fees struct {
	GasFeeCap *big.Int
	GasTipCap *big.Int
	// BlobFeeCap is only populated for blob transactions.
	BlobFeeCap *big.Int
}

// SubmitterConfig configures the Submitter.
type SubmitterConfig struct {
	PrivateKeyHex    string
	Policy           FeePolicy
	FixedGasFeeCap   *big.Int
	FixedGasTipCap   *big.Int
	MaxBlobFeeGwei   uint64
}

// Submitter signs and broadcasts transactions on behalf of a single
// operator key, reconciling its local nonce counter against the chain
// the first time it is used and after any send error.
type Submitter struct {
	client  *Client
	key     *ecdsa.PrivateKey
	address common.Address
	cfg     SubmitterConfig

	mu         sync.Mutex
	nonce      uint64
	nonceValid bool
}

// NewSubmitter parses cfg.PrivateKeyHex and binds the submitter to
// client.
func NewSubmitter(client *Client, cfg SubmitterConfig) (*Submitter, error) {
	keyHex := strings.TrimPrefix(cfg.PrivateKeyHex, "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse submitter private key: %w", err)
	}
	return &Submitter{
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		cfg:     cfg,
	}, nil
}

// Address returns the submitter's on-chain address.
func (s *Submitter) Address() common.Address { return s.address }

// NextNonce returns the next nonce to use, reconciling against the
// chain on first call. Callers must call either CommitNonce (on
// successful send) or ReleaseNonce (on failure) exactly once per
// NextNonce call.
func (s *Submitter) NextNonce(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nonceValid {
		n, err := s.client.PendingNonce(ctx, s.address)
		if err != nil {
			return 0, err
		}
		s.nonce = n
		s.nonceValid = true
	}
	return s.nonce, nil
}

// CommitNonce advances the local nonce counter after a successful
// broadcast.
func (s *Submitter) CommitNonce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce++
}

// ReleaseNonce invalidates the cached nonce so the next NextNonce call
// re-fetches it from the chain, used after a send failure that may
// have left the local counter out of sync.
func (s *Submitter) ReleaseNonce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceValid = false
}

// ComputeFees derives gas_fee_cap/gas_tip_cap per the configured
// FeePolicy.
func (s *Submitter) ComputeFees(ctx context.Context) (Fees, error) {
	switch s.cfg.Policy {
	case FeePolicyFixed:
		return Fees{GasFeeCap: s.cfg.FixedGasFeeCap, GasTipCap: s.cfg.FixedGasTipCap}, nil
	case FeePolicyAggressive:
		return s.dynamicFees(ctx, big.NewInt(3), big.NewInt(2))
	default:
		return s.dynamicFees(ctx, big.NewInt(2), big.NewInt(1))
	}
}

func (s *Submitter) dynamicFees(ctx context.Context, baseFeeMultiplier, tipMultiplier *big.Int) (Fees, error) {
	baseFee, err := s.client.HeadBaseFee(ctx)
	if err != nil {
		return Fees{}, err
	}
	tip, err := s.client.SuggestGasTipCap(ctx)
	if err != nil {
		return Fees{}, err
	}
	return computeDynamicFees(baseFee, tip, baseFeeMultiplier, tipMultiplier), nil
}

// computeDynamicFees is the pure core of dynamicFees, split out so the
// fee-policy arithmetic can be tested without a live RPC endpoint.
func computeDynamicFees(baseFee, suggestedTip, baseFeeMultiplier, tipMultiplier *big.Int) Fees {
	tip := new(big.Int).Mul(suggestedTip, tipMultiplier)

	feeCap := new(big.Int).Mul(baseFee, baseFeeMultiplier)
	feeCap.Add(feeCap, tip)

	return Fees{GasFeeCap: feeCap, GasTipCap: tip}
}

// ComputeBlobFeeCap derives a blob fee cap from the head blob base
// fee, doubled for headroom, and reports whether it exceeds
// MaxBlobFeeGwei.
func (s *Submitter) ComputeBlobFeeCap(ctx context.Context) (*big.Int, bool, error) {
	blobBaseFee, err := s.client.BlobBaseFee(ctx)
	if err != nil {
		return nil, false, err
	}
	feeCap := new(big.Int).Mul(blobBaseFee, big.NewInt(2))

	if s.cfg.MaxBlobFeeGwei > 0 {
		maxWei := new(big.Int).Mul(big.NewInt(int64(s.cfg.MaxBlobFeeGwei)), big.NewInt(1_000_000_000))
		if feeCap.Cmp(maxWei) > 0 {
			return feeCap, true, nil
		}
	}
	return feeCap, false, nil
}

// SignerFor returns the appropriate signer for chainID, using the
// Cancun (post-4844) signer so both legacy/dynamic-fee and blob
// transactions can be signed through one code path.
func SignerFor(chainID *big.Int) types.Signer {
	return types.NewCancunSigner(chainID)
}

// Sign signs tx with the submitter's key.
func (s *Submitter) Sign(tx *types.Transaction) (*types.Transaction, error) {
	signer := SignerFor(s.client.ChainID())
	signed, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// Submit signs and broadcasts tx. It classifies a node-reported
// "already known" error as success (returning tx's own hash, not an
// error) since the spec tolerates duplicate submissions of the same
// nonce.
func (s *Submitter) Submit(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := s.Sign(tx)
	if err != nil {
		return common.Hash{}, err
	}

	err = s.client.SendRawTransaction(ctx, signed)
	if err == nil {
		return signed.Hash(), nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "already known"):
		return signed.Hash(), nil
	case strings.Contains(msg, "nonce too low"):
		return common.Hash{}, fmt.Errorf("%w: %s", ErrNonceTooLow, msg)
	default:
		return common.Hash{}, err
	}
}
