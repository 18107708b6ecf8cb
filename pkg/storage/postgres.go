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
	_ "github.com/lib/pq" // postgres driver
)

const postgresSchemaDDL = `
CREATE TABLE IF NOT EXISTS batches (
	id                  TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	chain_id            BIGINT NOT NULL,
	bridge_address      BYTEA NOT NULL,
	data_hash           BYTEA NOT NULL,
	new_root            BYTEA NOT NULL,
	da_mode             TEXT NOT NULL,
	payload             BYTEA NOT NULL,
	proof               BYTEA,
	tx_hash             BYTEA,
	blob_versioned_hash BYTEA,
	attempts            INTEGER NOT NULL DEFAULT 0,
	last_error          TEXT,
	gas_used            BIGINT NOT NULL DEFAULT 0,
	gas_price_wei       BIGINT NOT NULL DEFAULT 0,
	confirmations       INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_status_updated_at ON batches (status, updated_at);
`

// PostgresStore is the networked relational storage backend, selected
// when DATABASE_URL has scheme postgres:// or postgresql://.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// PostgresOption configures a PostgresStore at construction time.
type PostgresOption func(*PostgresStore)

// WithPostgresLogger overrides the default logger.
func WithPostgresLogger(logger *log.Logger) PostgresOption {
	return func(s *PostgresStore) {
		s.logger = logger
	}
}

// NewPostgresStore opens a connection pool against dsn and verifies
// connectivity before returning.
func NewPostgresStore(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	s := &PostgresStore{
		logger: log.New(log.Writer(), "[Storage/postgres] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.db = db
	return s, nil
}

// EnsureSchema creates the batches table and its index if they do not
// already exist. Intended for local/dev bootstrapping; production
// deployments are expected to run schema migrations out of band.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Upsert(ctx context.Context, b *batch.Batch) error {
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			chain_id = EXCLUDED.chain_id,
			bridge_address = EXCLUDED.bridge_address,
			data_hash = EXCLUDED.data_hash,
			new_root = EXCLUDED.new_root,
			da_mode = EXCLUDED.da_mode,
			payload = EXCLUDED.payload,
			proof = EXCLUDED.proof,
			tx_hash = EXCLUDED.tx_hash,
			blob_versioned_hash = EXCLUDED.blob_versioned_hash,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			gas_used = EXCLUDED.gas_used,
			gas_price_wei = EXCLUDED.gas_price_wei,
			confirmations = EXCLUDED.confirmations,
			updated_at = EXCLUDED.updated_at`

	row := toRow(b)
	_, err := s.db.ExecContext(ctx, query,
		row.id, row.status, row.chainID, row.bridgeAddress, row.dataHash, row.newRoot,
		row.daMode, row.payload, row.proof, row.txHash, row.blobVersionedHash,
		row.attempts, row.lastError, row.gasUsed, row.gasPriceWei, row.confirmations,
		row.createdAt, row.updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*batch.Batch, error) {
	const query = `
		SELECT id, status, chain_id, bridge_address, data_hash, new_root,
			da_mode, payload, proof, tx_hash, blob_versioned_hash,
			attempts, last_error, gas_used, gas_price_wei, confirmations,
			created_at, updated_at
		FROM batches WHERE id = $1`

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

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*batch.Batch, error) {
	const query = `
		SELECT id, status, chain_id, bridge_address, data_hash, new_root,
			da_mode, payload, proof, tx_hash, blob_versioned_hash,
			attempts, last_error, gas_used, gas_price_wei, confirmations,
			created_at, updated_at
		FROM batches
		WHERE status NOT IN ('confirmed', 'failed')
		ORDER BY updated_at ASC
		LIMIT $1`

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

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const query = `
		UPDATE batches SET status = 'failed', last_error = $2, updated_at = $3
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id.String(), reason, time.Now().UTC())
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
