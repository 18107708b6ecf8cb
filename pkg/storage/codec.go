// Copyright 2025 Certen Protocol
//
// Shared row <-> batch.Batch conversion used by both backends so the
// column layout and null handling stay in one place.

package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/google/uuid"
)

type row struct {
	id                string
	status            string
	chainID           int64
	bridgeAddress     []byte
	dataHash          []byte
	newRoot           []byte
	daMode            string
	payload           []byte
	proof             []byte
	txHash            []byte
	blobVersionedHash []byte
	attempts          int64
	lastError         sql.NullString
	gasUsed           int64
	gasPriceWei       int64
	confirmations     int64
	createdAt         time.Time
	updatedAt         time.Time
}

func toRow(b *batch.Batch) row {
	r := row{
		id:            b.ID.String(),
		status:        string(b.Status),
		chainID:       int64(b.ChainID),
		bridgeAddress: append([]byte(nil), b.BridgeAddress[:]...),
		dataHash:      append([]byte(nil), b.DataHash[:]...),
		newRoot:       append([]byte(nil), b.NewRoot[:]...),
		daMode:        string(b.DAMode),
		payload:       b.Payload,
		proof:         b.Proof,
		attempts:      int64(b.Attempts),
		gasUsed:       int64(b.GasUsed),
		gasPriceWei:   int64(b.GasPriceWei),
		confirmations: int64(b.Confirmations),
		createdAt:     b.CreatedAt,
		updatedAt:     b.UpdatedAt,
	}
	if b.LastError != "" {
		r.lastError = sql.NullString{String: b.LastError, Valid: true}
	}
	if b.TxHash != nil {
		r.txHash = append([]byte(nil), b.TxHash[:]...)
	}
	if b.BlobVersionedHash != nil {
		r.blobVersionedHash = append([]byte(nil), b.BlobVersionedHash[:]...)
	}
	return r
}

func (r row) toBatch() (*batch.Batch, error) {
	id, err := uuid.Parse(r.id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch id %q: %w", r.id, err)
	}

	b := &batch.Batch{
		ID:            id,
		Status:        batch.Status(r.status),
		ChainID:       uint64(r.chainID),
		DAMode:        batch.DAMode(r.daMode),
		Payload:       r.payload,
		Proof:         r.proof,
		Attempts:      uint32(r.attempts),
		LastError:     r.lastError.String,
		GasUsed:       uint64(r.gasUsed),
		GasPriceWei:   uint64(r.gasPriceWei),
		Confirmations: uint32(r.confirmations),
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}

	if len(r.bridgeAddress) != 20 {
		return nil, fmt.Errorf("bridge_address: %w", batch.ErrInvalidAddress)
	}
	copy(b.BridgeAddress[:], r.bridgeAddress)

	if len(r.dataHash) != 32 {
		return nil, fmt.Errorf("data_hash: %w", batch.ErrInvalidHash)
	}
	copy(b.DataHash[:], r.dataHash)

	if len(r.newRoot) != 32 {
		return nil, fmt.Errorf("new_root: %w", batch.ErrInvalidHash)
	}
	copy(b.NewRoot[:], r.newRoot)

	if r.txHash != nil {
		var h [32]byte
		if len(r.txHash) != 32 {
			return nil, fmt.Errorf("tx_hash: %w", batch.ErrInvalidHash)
		}
		copy(h[:], r.txHash)
		b.TxHash = &h
	}

	if r.blobVersionedHash != nil {
		var h [32]byte
		if len(r.blobVersionedHash) != 32 {
			return nil, fmt.Errorf("blob_versioned_hash: %w", batch.ErrInvalidHash)
		}
		copy(h[:], r.blobVersionedHash)
		b.BlobVersionedHash = &h
	}

	return b, nil
}
