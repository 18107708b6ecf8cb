// Copyright 2025 Certen Protocol
//
// Orchestrator drives every non-terminal batch through its next
// legal transition on a fixed tick, fanning work out across a bounded
// pool of goroutines and draining in-flight handlers on shutdown.

package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/da"
	"github.com/certen/batch-submitter/pkg/l1"
	"github.com/certen/batch-submitter/pkg/metrics"
	"github.com/certen/batch-submitter/pkg/prover"
	"github.com/certen/batch-submitter/pkg/resilience"
	"github.com/certen/batch-submitter/pkg/storage"
)

// State represents the orchestrator's own run state, the same
// Stopped/Running shape the teacher's Scheduler uses.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Config configures the Orchestrator.
type Config struct {
	Store      storage.Store
	Prover     prover.Provider
	Strategies map[batch.DAMode]da.Strategy
	Metrics    *metrics.Registry

	TickInterval          time.Duration
	MaxConcurrency        int64
	RequiredConfirmations uint32
	RetryPolicy           resilience.Policy
	ShutdownGrace         time.Duration

	// Breakers is keyed by port name ("prover", "l1") so each external
	// dependency trips independently.
	Breakers map[string]*resilience.Breaker

	ListPendingLimit int
	Logger           *log.Logger

	// NotFoundGrace is how long a Submitted batch may report
	// StateNotFound before it is treated as a transient failure
	// (dropped from the mempool) rather than "just broadcast".
	NotFoundGrace time.Duration
}

// DefaultConfig fills in spec defaults for every field a caller
// doesn't set explicitly.
func DefaultConfig() Config {
	return Config{
		TickInterval:          5 * time.Second,
		MaxConcurrency:        8,
		RequiredConfirmations: 1,
		RetryPolicy:           resilience.DefaultPolicy(),
		ShutdownGrace:         30 * time.Second,
		ListPendingLimit:      256,
		NotFoundGrace:         2 * time.Minute,
		Breakers: map[string]*resilience.Breaker{
			"prover": resilience.NewBreaker(resilience.DefaultBreakerConfig()),
			"l1":     resilience.NewBreaker(resilience.DefaultBreakerConfig()),
		},
	}
}

// Orchestrator is the saga driver described in spec.md §4.7.
type Orchestrator struct {
	mu sync.RWMutex

	cfg    Config
	logger *log.Logger

	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	sem *semaphore.Weighted
}

// New constructs an Orchestrator in the Stopped state.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Orchestrator] ", log.LstdFlags)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.Breakers == nil {
		cfg.Breakers = map[string]*resilience.Breaker{
			"prover": resilience.NewBreaker(resilience.DefaultBreakerConfig()),
			"l1":     resilience.NewBreaker(resilience.DefaultBreakerConfig()),
		}
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger,
		state:  StateStopped,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrency),
	}
}

// State returns the orchestrator's current run state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Start launches the main loop in a background goroutine. Calling
// Start on an already-running Orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return
	}
	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.state = StateRunning
	o.mu.Unlock()

	go o.run(ctx)
	o.logger.Printf("started (tick=%s, max_concurrency=%d)", o.cfg.TickInterval, o.cfg.MaxConcurrency)
}

// Stop signals the main loop to exit and waits up to ShutdownGrace for
// in-flight handlers to drain.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return
	}
	close(o.stopCh)
	o.state = StateStopped
	o.mu.Unlock()

	select {
	case <-o.doneCh:
		o.logger.Println("stopped cleanly")
	case <-time.After(o.cfg.ShutdownGrace):
		o.logger.Println("stop timed out waiting for in-flight handlers to drain")
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.doneCh)

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.drain()
			return
		case <-o.stopCh:
			o.drain()
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick lists pending batches and fans out one handler goroutine per
// batch, bounded by the semaphore.
func (o *Orchestrator) tick(ctx context.Context) {
	pending, err := o.cfg.Store.ListPending(ctx, o.cfg.ListPendingLimit)
	if err != nil {
		o.logger.Printf("list_pending failed: %v", err)
		return
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.PendingBatches.Set(float64(len(pending)))
	}

	var wg sync.WaitGroup
	for _, b := range pending {
		b := b
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return // context cancelled mid-fan-out
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer o.sem.Release(1)
			o.handle(ctx, b)
		}()
	}
	wg.Wait()
}

// drain waits for any handlers still holding semaphore slots to
// finish, up to ShutdownGrace, by attempting to acquire the full
// weight back.
func (o *Orchestrator) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownGrace)
	defer cancel()
	if err := o.sem.Acquire(ctx, o.cfg.MaxConcurrency); err != nil {
		o.logger.Printf("drain timed out with handlers still in flight: %v", err)
		return
	}
	o.sem.Release(o.cfg.MaxConcurrency)
}
