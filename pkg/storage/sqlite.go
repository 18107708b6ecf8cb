// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

const sqliteSchemaDDL = `
CREATE TABLE IF NOT EXISTS batches (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	chain_id            INTEGER NOT NULL,
	bridge_address      BLOB NOT NULL,
	data_hash           BLOB NOT NULL,
	new_root            BLOB NOT NULL,
	da_mode             TEXT NOT NULL,
	payload             BLOB NOT NULL,
	proof               BLOB,
	tx_hash             BLOB,
	blob_versioned_hash BLOB,
	attempts            INTEGER NOT NULL DEFAULT 0,
	last_error          TEXT,
	gas_used            INTEGER NOT NULL DEFAULT 0,
	gas_price_wei       INTEGER NOT NULL DEFAULT 0,
	confirmations       INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_status_updated_at ON batches (status, updated_at);
`

// SQLiteConfig configures the embedded backend, selected when
// DATABASE_URL has scheme sqlite://.
type SQLiteConfig struct {
	Path            string
	BusyTimeout     time.Duration
	CacheSizeKB     int
	JournalMode     string
	SynchronousMode string
}

// DefaultSQLiteConfig returns sane single-process defaults.
func DefaultSQLiteConfig(path string) *SQLiteConfig {
	return &SQLiteConfig{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		CacheSizeKB:     10000,
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
	}
}

// SQLiteStore is the embedded, file-backed storage backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteStore opens (creating if absent) the database at cfg.Path,
// applies the configured pragmas, and ensures the batches table exists.
func NewSQLiteStore(cfg *SQLiteConfig) (*SQLiteStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlite config cannot be nil")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under the
	// orchestrator's bounded fan-out; WAL mode lets readers proceed
	// concurrently with the one writer.
	db.SetMaxOpenConns(1)

	if err := configurePragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: log.New(log.Writer(), "[Storage/sqlite] ", log.LstdFlags),
	}, nil
}

func configurePragmas(db *sql.DB, cfg *SQLiteConfig) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.JournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.SynchronousMode),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, b *batch.Batch) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	const query = `
		INSERT INTO batches (
			id, status, chain_id, bridge_address, data_hash, new_root,
			da_mode, payload, proof, tx_hash, blob_versioned_hash,
			attempts, last_error, gas_used, gas_price_wei, confirmations,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			chain_id = excluded.chain_id,
			bridge_address = excluded.bridge_address,
			data_hash = excluded.data_hash,
			new_root = excluded.new_root,
			da_mode = excluded.da_mode,
			payload = excluded.payload,
			proof = excluded.proof,
			tx_hash = excluded.tx_hash,
			blob_versioned_hash = excluded.blob_versioned_hash,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			gas_used = excluded.gas_used,
			gas_price_wei = excluded.gas_price_wei,
			confirmations = excluded.confirmations,
			updated_at = excluded.updated_at`

	r := toRow(b)
	_, err := s.db.ExecContext(ctx, query,
		r.id, r.status, r.chainID, r.bridgeAddress, r.dataHash, r.newRoot,
		r.daMode, r.payload, r.proof, r.txHash, r.blobVersionedHash,
		r.attempts, r.lastError, r.gasUsed, r.gasPriceWei, r.confirmations,
		r.createdAt, r.updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	const query = `
		SELECT id, status, chain_id, bridge_address, data_hash, new_root,
			da_mode, payload, proof, tx_hash, blob_versioned_hash,
			attempts, last_error, gas_used, gas_price_wei, confirmations,
			created_at, updated_at
		FROM batches WHERE id = ?`

	var r row
	err := s.db.QueryRowContext(ctx, query, id.String()).Scan(
		&r.id, &r.status, &r.chainID, &r.bridgeAddress, &r.dataHash, &r.newRoot,
		&r.daMode, &r.payload, &r.proof, &r.txHash, &r.blobVersionedHash,
		&r.attempts, &r.lastError, &r.gasUsed, &r.gasPriceWei, &r.confirmations,
		&r.createdAt, &r.updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return r.toBatch()
}

func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]*batch.Batch, error) {
	const query = `
		SELECT id, status, chain_id, bridge_address, data_hash, new_root,
			da_mode, payload, proof, tx_hash, blob_versioned_hash,
			attempts, last_error, gas_used, gas_price_wei, confirmations,
			created_at, updated_at
		FROM batches
		WHERE status NOT IN ('confirmed', 'failed')
		ORDER BY updated_at ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending batches: %w", err)
	}
	defer rows.Close()

	var out []*batch.Batch
	for rows.Next() {
		var r row
		if err := rows.Scan(
			&r.id, &r.status, &r.chainID, &r.bridgeAddress, &r.dataHash, &r.newRoot,
			&r.daMode, &r.payload, &r.proof, &r.txHash, &r.blobVersionedHash,
			&r.attempts, &r.lastError, &r.gasUsed, &r.gasPriceWei, &r.confirmations,
			&r.createdAt, &r.updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		b, err := r.toBatch()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `UPDATE batches SET status = 'failed', last_error = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, reason, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark batch failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm mark-failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
