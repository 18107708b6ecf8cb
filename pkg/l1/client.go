// Copyright 2025 Certen Protocol
//
// L1 client: a thin wrapper over ethclient.Client that dials once,
// caches the chain id, and exposes typed helpers for the handful of
// JSON-RPC calls the submitter and DA strategies need.

package l1

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps the standard JSON-RPC surface this daemon needs:
// eth_chainId, eth_getTransactionCount, eth_getBlockByNumber (head
// base fee and excess blob gas), eth_maxPriorityFeePerGas,
// eth_estimateGas, eth_sendRawTransaction, eth_getTransactionReceipt,
// eth_blockNumber. It does not call eth_feeHistory or eth_blobBaseFee;
// the blob base fee is computed locally from the head's excess blob gas.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	url     string
}

// NewClient dials rpcURL and verifies the reported chain id matches
// expectedChainID, per spec.md's "consistency-checked against RPC"
// requirement on network.chain_id.
func NewClient(ctx context.Context, rpcURL string, expectedChainID uint64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to L1: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	if expectedChainID != 0 && chainID.Uint64() != expectedChainID {
		eth.Close()
		return nil, fmt.Errorf("configured chain_id %d does not match RPC chain_id %d", expectedChainID, chainID.Uint64())
	}

	return &Client{eth: eth, chainID: chainID, url: rpcURL}, nil
}

func (c *Client) ChainID() *big.Int { return c.chainID }

func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// PendingNonce returns the next nonce for addr, including pending
// transactions — used to reconcile the in-memory nonce counter on
// first use and on restart.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

// SuggestGasTipCap returns the node's suggested priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	return tip, nil
}

// HeadBaseFee returns the latest block's base fee, used to compute
// gas_fee_cap = base_fee*multiplier + tip for the configured fee
// policy.
func (c *Client) HeadBaseFee(ctx context.Context) (*big.Int, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head block: %w", err)
	}
	if header.BaseFee == nil {
		return big.NewInt(0), nil
	}
	return header.BaseFee, nil
}

// BlobBaseFee returns the current EIP-4844 blob base fee.
func (c *Client) BlobBaseFee(ctx context.Context) (*big.Int, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head block: %w", err)
	}
	if header.ExcessBlobGas == nil {
		return big.NewInt(0), nil
	}
	return eip4844BlobBaseFee(*header.ExcessBlobGas), nil
}

// EstimateGas estimates the gas limit for msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// SendRawTransaction broadcasts a signed transaction and returns its
// hash. "already known" responses are tolerated by the caller
// (Submitter), not here, since only the caller knows whether the hash
// matches a prior attempt.
func (c *Client) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}

// Receipt fetches a transaction receipt, returning (nil, nil) if it
// does not exist yet (interpreted by callers as ConfState NotFound or
// Pending depending on grace period).
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err == ethereum.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// BlockNumber returns the current head block number, used to compute
// confirmations = head - receipt.block_number + 1.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return n, nil
}

// Health pings the node via eth_blockNumber.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}

// eip4844BlobBaseFee implements the fake-exponential formula from
// EIP-4844 (same computation go-ethereum's eip4844 package performs
// internally) so callers can cap blob fees without reaching into an
// internal package.
func eip4844BlobBaseFee(excessBlobGas uint64) *big.Int {
	const minBlobBaseFee = 1
	const blobBaseFeeUpdateFraction = 3338477

	return fakeExponential(big.NewInt(minBlobBaseFee), new(big.Int).SetUint64(excessBlobGas), big.NewInt(blobBaseFeeUpdateFraction))
}

func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	i := big.NewInt(1)
	output := big.NewInt(0)
	numeratorAccum := new(big.Int).Mul(factor, denominator)

	for numeratorAccum.Sign() > 0 {
		output.Add(output, numeratorAccum)

		numeratorAccum.Mul(numeratorAccum, numerator)
		numeratorAccum.Div(numeratorAccum, denominator)
		numeratorAccum.Div(numeratorAccum, i)

		i.Add(i, big.NewInt(1))
	}
	return output.Div(output, denominator)
}
