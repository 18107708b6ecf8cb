// Copyright 2025 Certen Protocol

package l1

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ConfState is the closed sum type describing how a submitted
// transaction currently stands with respect to the chain.
type ConfState int

const (
	// StateNotFound means the node has no record of the transaction at
	// all (it was dropped from the mempool, or never made it in).
	StateNotFound ConfState = iota
	// StatePending means the transaction is known but not yet mined.
	StatePending
	// StateMined means the transaction was included in a block;
	// Success and Confirmations describe the outcome.
	StateMined
	// StateReverted means the transaction was mined with status 0.
	StateReverted
)

func (s ConfState) String() string {
	switch s {
	case StateNotFound:
		return "not_found"
	case StatePending:
		return "pending"
	case StateMined:
		return "mined"
	case StateReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Confirmation is the result of checking a transaction's status
// against the current chain head. The caller (orchestrator) decides
// whether Confirmations meets its required_confirmations threshold;
// this type only reports what the chain currently shows.
type Confirmation struct {
	State         ConfState
	BlockNumber   uint64
	GasUsed       uint64
	Confirmations uint32
}

// CheckConfirmation fetches the receipt for txHash and reports its
// mined/reverted/pending state and confirmation depth. Per spec.md
// §4.5, a receipt with status == 0 is Reverted regardless of depth; a
// transaction is only considered fully Confirmed once the caller
// observes Confirmations >= its configured required_confirmations.
func (c *Client) CheckConfirmation(ctx context.Context, txHash common.Hash) (Confirmation, error) {
	receipt, err := c.Receipt(ctx, txHash)
	if err != nil {
		return Confirmation{}, err
	}
	if receipt == nil {
		return Confirmation{State: StateNotFound}, nil
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return Confirmation{
			State:       StateReverted,
			BlockNumber: receipt.BlockNumber.Uint64(),
			GasUsed:     receipt.GasUsed,
		}, nil
	}

	head, err := c.BlockNumber(ctx)
	if err != nil {
		return Confirmation{}, err
	}

	blockNumber := receipt.BlockNumber.Uint64()
	var confirmations uint32
	if head >= blockNumber {
		depth := head - blockNumber + 1
		if depth > uint64(^uint32(0)) {
			confirmations = ^uint32(0)
		} else {
			confirmations = uint32(depth)
		}
	}

	return Confirmation{
		State:         StateMined,
		BlockNumber:   blockNumber,
		GasUsed:       receipt.GasUsed,
		Confirmations: confirmations,
	}, nil
}
