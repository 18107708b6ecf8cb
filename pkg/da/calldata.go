// Copyright 2025 Certen Protocol

package da

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/l1"
)

// commitBatchABI describes the single method this daemon calls on the
// bridge contract: commitBatch(bytes32 newRoot, bytes proof, bytes batchData).
const commitBatchABI = `[{
	"type": "function",
	"name": "commitBatch",
	"inputs": [
		{"name": "newRoot", "type": "bytes32"},
		{"name": "proof", "type": "bytes"},
		{"name": "batchData", "type": "bytes"}
	],
	"outputs": []
}]`

// CalldataStrategy posts batch data inline as transaction calldata on
// a type-2 (EIP-1559) transaction.
type CalldataStrategy struct {
	client      *l1.Client
	submitter   *l1.Submitter
	bridge      common.Address
	contractABI abi.ABI
}

// NewCalldataStrategy parses commitBatchABI once at construction time.
func NewCalldataStrategy(client *l1.Client, submitter *l1.Submitter, bridge common.Address) (*CalldataStrategy, error) {
	parsed, err := abi.JSON(strings.NewReader(commitBatchABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse commitBatch ABI: %w", err)
	}
	return &CalldataStrategy{client: client, submitter: submitter, bridge: bridge, contractABI: parsed}, nil
}

var _ Strategy = (*CalldataStrategy)(nil)

// Submit builds commitBatch(newRoot, proof, batchData) calldata,
// estimates gas, prices, signs and broadcasts a dynamic-fee
// transaction.
func (s *CalldataStrategy) Submit(ctx context.Context, b *batch.Batch) (*SubmitResult, error) {
	callData, err := s.contractABI.Pack("commitBatch", b.NewRoot, b.Proof, b.Payload)
	if err != nil {
		return nil, NewError(Permanent, fmt.Errorf("failed to pack commitBatch call: %w", err))
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
	// Headroom over the estimate; the teacher's client applies a flat
	// gas-price floor for the same reason (estimates drift between
	// quote and broadcast).
	gas = gas + gas/5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.client.ChainID(),
		Nonce:     nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gas,
		To:        &s.bridge,
		Value:     nil,
		Data:      callData,
	})

	hash, err := s.submitter.Submit(ctx, tx)
	if err != nil {
		s.submitter.ReleaseNonce()
		return nil, NewError(Transient, err)
	}
	s.submitter.CommitNonce()

	return &SubmitResult{TxHash: hash}, nil
}

// CheckConfirmation delegates to the underlying L1 client.
func (s *CalldataStrategy) CheckConfirmation(ctx context.Context, txHash common.Hash) (l1.Confirmation, error) {
	return s.client.CheckConfirmation(ctx, txHash)
}
