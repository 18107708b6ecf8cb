// Copyright 2025 Certen Protocol

package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/da"
	"github.com/certen/batch-submitter/pkg/l1"
	"github.com/certen/batch-submitter/pkg/metrics"
	"github.com/certen/batch-submitter/pkg/prover"
	"github.com/certen/batch-submitter/pkg/resilience"
	"github.com/certen/batch-submitter/pkg/storage"
)

// fakeStrategy is a deterministic, in-memory stand-in for a real DA
// strategy so orchestrator tests don't need a live L1 node.
type fakeStrategy struct {
	submitCount   int32
	confirmations uint32
	revert        bool
	submitErr     error
}

func (f *fakeStrategy) Submit(ctx context.Context, b *batch.Batch) (*da.SubmitResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	atomic.AddInt32(&f.submitCount, 1)
	var hash gethcommon.Hash
	hash[0] = 0xAA
	return &da.SubmitResult{TxHash: hash}, nil
}

func (f *fakeStrategy) CheckConfirmation(ctx context.Context, txHash gethcommon.Hash) (l1.Confirmation, error) {
	if f.revert {
		return l1.Confirmation{State: l1.StateReverted}, nil
	}
	return l1.Confirmation{State: l1.StateMined, Confirmations: f.confirmations, BlockNumber: 100}, nil
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewSQLiteStore(storage.DefaultSQLiteConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBatch(t *testing.T, store storage.Store, status batch.Status) *batch.Batch {
	t.Helper()
	id, err := batch.Identity(1, [20]byte{0x01}, [32]byte{0x02}, [32]byte{0x03}, batch.Calldata)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	b := &batch.Batch{
		ID:            id,
		Status:        status,
		ChainID:       1,
		BridgeAddress: [20]byte{0x01},
		DataHash:      [32]byte{0x02},
		NewRoot:       [32]byte{0x03},
		DAMode:        batch.Calldata,
		Payload:       []byte("payload"),
	}
	if status != batch.Discovered {
		b.Proof = []byte("proof")
	}
	if err := store.Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}
	return b
}

func newTestOrchestrator(t *testing.T, store storage.Store, strategy *fakeStrategy) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Store = store
	cfg.Prover = prover.NewMockProver(0)
	cfg.Strategies = map[batch.DAMode]da.Strategy{batch.Calldata: strategy}
	cfg.Metrics = metrics.New()
	cfg.RetryPolicy = resilience.Policy{Base: time.Millisecond, MaxBackoff: time.Millisecond, MaxAttempts: 2}
	cfg.Breakers = map[string]*resilience.Breaker{
		"prover": resilience.NewBreaker(&resilience.BreakerConfig{Threshold: 100, Cooldown: time.Hour, MaxCooldown: time.Hour}),
		"l1":     resilience.NewBreaker(&resilience.BreakerConfig{Threshold: 100, Cooldown: time.Hour, MaxCooldown: time.Hour}),
	}
	return New(cfg)
}

func TestOrchestrator_HappyPathDiscoveredToConfirmed(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, batch.Discovered)
	strategy := &fakeStrategy{confirmations: 1}
	o := newTestOrchestrator(t, store, strategy)

	ctx := context.Background()

	// Discovered -> Proving -> Proved in one handler call.
	o.tick(ctx)
	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Proved {
		t.Fatalf("after first tick, status = %s, want %s", got.Status, batch.Proved)
	}

	// Proved -> Submitting -> Submitted.
	o.tick(ctx)
	got, err = store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Submitted {
		t.Fatalf("after second tick, status = %s, want %s", got.Status, batch.Submitted)
	}
	if got.TxHash == nil {
		t.Fatal("expected tx_hash to be set after Submitted")
	}

	// Submitted -> Confirmed (strategy reports 1 confirmation, required=1).
	o.tick(ctx)
	got, err = store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Confirmed {
		t.Fatalf("after third tick, status = %s, want %s", got.Status, batch.Confirmed)
	}
}

func TestOrchestrator_RevertDeadLettersAfterMaxAttempts(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, batch.Submitted)
	b.TxHash = &[32]byte{0xAA}
	if err := store.Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed Upsert with tx_hash: %v", err)
	}

	strategy := &fakeStrategy{revert: true}
	o := newTestOrchestrator(t, store, strategy)
	ctx := context.Background()

	// MaxAttempts=2: attempts 1 and 2 resubmit, attempt 3 (>2) dead-letters
	// without a further broadcast.
	for i := 0; i < 3; i++ {
		o.tick(ctx)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Failed {
		t.Fatalf("status after repeated reverts = %s, want %s", got.Status, batch.Failed)
	}
	if n := atomic.LoadInt32(&strategy.submitCount); n != 2 {
		t.Fatalf("submitCount = %d, want 2 (one resubmission per retried attempt, none on the dead-lettering tick)", n)
	}
}

func TestOrchestrator_RevertResubmitsWithFreshBroadcast(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, batch.Submitted)
	b.TxHash = &[32]byte{0xAA}
	if err := store.Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed Upsert with tx_hash: %v", err)
	}

	strategy := &fakeStrategy{revert: true}
	o := newTestOrchestrator(t, store, strategy)
	ctx := context.Background()

	o.tick(ctx)

	if n := atomic.LoadInt32(&strategy.submitCount); n != 1 {
		t.Fatalf("submitCount = %d, want 1: a reverted tx must be resubmitted, not just retried in place", n)
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Submitted {
		t.Fatalf("status = %s, want still Submitted after a resubmit (self-loop)", got.Status)
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}
	if got.TxHash == nil {
		t.Fatal("expected a tx_hash to be set after resubmission")
	}
}

func TestOrchestrator_PendingConfirmationIsNoOp(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, batch.Submitted)
	b.TxHash = &[32]byte{0xAA}
	if err := store.Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}

	strategy := &fakeStrategy{confirmations: 0}
	o := newTestOrchestrator(t, store, strategy)
	ctx := context.Background()

	o.tick(ctx)

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Submitted {
		t.Fatalf("status = %s, want still Submitted while under-confirmed", got.Status)
	}
}

func TestOrchestrator_CrashRecoveryResumesFromSubmittingWithExistingTxHash(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, batch.Submitting)
	hash := [32]byte{0xBB}
	b.TxHash = &hash
	if err := store.Upsert(context.Background(), b); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}

	strategy := &fakeStrategy{confirmations: 1}
	o := newTestOrchestrator(t, store, strategy)
	ctx := context.Background()

	o.tick(ctx)

	if atomic.LoadInt32(&strategy.submitCount) != 0 {
		t.Fatal("expected no new broadcast when resuming Submitting with an existing tx_hash that is already mined")
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batch.Submitted {
		t.Fatalf("status = %s, want %s after resuming with a confirmed prior tx_hash", got.Status, batch.Submitted)
	}
}

func TestDefaultConfig_HasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxConcurrency != 8 {
		t.Errorf("max concurrency = %d, want 8", cfg.MaxConcurrency)
	}
	if cfg.RequiredConfirmations != 1 {
		t.Errorf("required confirmations = %d, want 1", cfg.RequiredConfirmations)
	}
}
