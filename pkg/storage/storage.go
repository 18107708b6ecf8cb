// Copyright 2025 Certen Protocol
//
// Storage port: durable persistence of batches with idempotent upsert
// and a pending-scan used by the orchestrator's tick loop.

package storage

import (
	"context"
	"errors"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/google/uuid"
)

// Common errors for the storage package.
var (
	ErrNotFound = errors.New("batch not found")
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Store is the durable persistence contract every backend implements
// identically. Implementations must make Upsert linearizable per id:
// two concurrent upserts of the same id serialize, and readers never
// observe a partially written batch.
type Store interface {
	// Upsert inserts or updates by id. It must be atomic and durable
	// before returning, and idempotent: calling it twice with the same
	// batch value yields the same final row.
	Upsert(ctx context.Context, b *batch.Batch) error

	// Get returns the batch with the given id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*batch.Batch, error)

	// ListPending returns up to limit batches whose status is
	// non-terminal, ordered by updated_at ascending so the oldest
	// pending batch is always scheduled first.
	ListPending(ctx context.Context, limit int) ([]*batch.Batch, error)

	// MarkFailed is a convenience terminal write equivalent to
	// advancing the batch to Failed and upserting it.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// Close releases any resources held by the backend.
	Close() error
}

// The batches table, per the external interface contract:
//
//	batches(id PRIMARY KEY, status, chain_id, bridge_address, data_hash,
//	  new_root, da_mode, payload, proof NULL, tx_hash NULL,
//	  blob_versioned_hash NULL, attempts, last_error NULL, gas_used,
//	  gas_price_wei, confirmations, created_at, updated_at)
//
// with an index on (status, updated_at) for ListPending. Each backend
// declares its own CREATE TABLE statement in its own column-type
// dialect (postgres.go, sqlite.go) since BYTEA and BLOB are not
// interchangeable keywords.
