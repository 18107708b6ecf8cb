// Copyright 2025 Certen Protocol

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(DefaultSQLiteConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBatch(id uuid.UUID) *batch.Batch {
	var addr [20]byte
	addr[0] = 0xAB
	var dataHash, newRoot [32]byte
	dataHash[0] = 0x01
	newRoot[0] = 0x11

	return &batch.Batch{
		ID:            id,
		Status:        batch.Discovered,
		ChainID:       31337,
		BridgeAddress: addr,
		DataHash:      dataHash,
		NewRoot:       newRoot,
		DAMode:        batch.Calldata,
		Payload:       []byte("hello"),
	}
}

func TestSQLiteStore_UpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := batch.Identity(31337, [20]byte{0xAB}, [32]byte{0x01}, [32]byte{0x11}, batch.Calldata)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}

	b := sampleBatch(id)
	if err := s.Upsert(ctx, b); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := s.Upsert(ctx, b); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id || got.Status != batch.Discovered {
		t.Errorf("unexpected row after idempotent upsert: %+v", got)
	}

	pending, err := s.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected exactly one row after two upserts of the same id, got %d", len(pending))
	}
}

func TestSQLiteStore_ListPendingOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleBatch(uuid.New())
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	second := sampleBatch(uuid.New())
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	got, err := s.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pending batches, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("expected oldest-first ordering, got %s then %s", got[0].ID, got[1].ID)
	}
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_MarkFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := sampleBatch(uuid.New())
	if err := s.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.MarkFailed(ctx, b.ID, "prover unreachable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Failed || got.LastError != "prover unreachable" {
		t.Errorf("unexpected row after MarkFailed: %+v", got)
	}
}

func TestSQLiteStore_MarkFailedNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.MarkFailed(context.Background(), uuid.New(), "x"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
