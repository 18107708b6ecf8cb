// Copyright 2025 Certen Protocol
//
// Per-status handlers implementing spec.md §4.7's transition table.
// Each handler is responsible for exactly one step: set the
// intermediate status, persist, call the external port, then persist
// the resulting status. A crash between any two of those persisted
// writes is safe to resume from, since re-entering a handler for a
// status re-does (not skips) the external call.

package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/batch-submitter/pkg/batch"
	"github.com/certen/batch-submitter/pkg/da"
	"github.com/certen/batch-submitter/pkg/l1"
	"github.com/certen/batch-submitter/pkg/metrics"
	"github.com/certen/batch-submitter/pkg/prover"
	"github.com/certen/batch-submitter/pkg/resilience"
)

// handle dispatches b to the handler for its current status. It never
// returns an error; all outcomes are expressed as persisted state
// changes and log lines, since the caller is a fire-and-forget
// goroutine in the tick fan-out.
func (o *Orchestrator) handle(ctx context.Context, b *batch.Batch) {
	switch b.Status {
	case batch.Discovered, batch.Proving:
		o.handleProving(ctx, b)
	case batch.Proved, batch.Submitting:
		o.handleSubmitting(ctx, b)
	case batch.Submitted:
		o.handleSubmitted(ctx, b)
	default:
		// Confirmed/Failed are terminal and never reach ListPending.
	}
}

// handleProving covers both Discovered and Proving: re-entry after a
// crash simply re-requests the proof, since the prover is expected to
// be idempotent per batch_id.
func (o *Orchestrator) handleProving(ctx context.Context, b *batch.Batch) {
	if b.Status == batch.Discovered {
		if err := b.Advance(batch.Proving); err != nil {
			o.logger.Printf("batch %s: %v", b.ID, err)
			return
		}
		if err := o.cfg.Store.Upsert(ctx, b); err != nil {
			o.logger.Printf("batch %s: failed to persist Proving: %v", b.ID, err)
			return
		}
		o.recordTransition(batch.Discovered, batch.Proving)
	}

	breaker := o.cfg.Breakers["prover"]
	if breaker != nil && !breaker.Allow() {
		o.recordExternalCall("prover", "busy")
		o.recordBreakerState("prover", breaker)
		return // deferred, no attempt consumed
	}

	publicInputs := publicInputsFor(b)

	start := time.Now()
	proof, err := o.cfg.Prover.GetProof(ctx, b.ID, publicInputs)
	elapsed := time.Since(start)

	if err != nil {
		if breaker != nil {
			breaker.Failure()
			o.recordBreakerState("prover", breaker)
		}
		o.recordExternalCallDuration("prover", "error", elapsed)

		var proverErr *prover.Error
		if errors.As(err, &proverErr) && proverErr.Kind == prover.Permanent {
			o.fail(ctx, b, "prover: "+err.Error())
			return
		}
		o.retryOrFail(ctx, b, err.Error())
		return
	}

	if breaker != nil {
		breaker.Success()
		o.recordBreakerState("prover", breaker)
	}
	o.recordExternalCallDuration("prover", "success", elapsed)

	b.Proof = proof
	if err := b.Advance(batch.Proved); err != nil {
		o.logger.Printf("batch %s: %v", b.ID, err)
		return
	}
	if err := o.cfg.Store.Upsert(ctx, b); err != nil {
		o.logger.Printf("batch %s: failed to persist Proved: %v", b.ID, err)
		return
	}
	o.recordTransition(batch.Proving, batch.Proved)
}

// handleSubmitting covers both Proved and Submitting. A batch
// re-entering with a tx_hash already set first checks confirmation
// before sending again. markSubmitted persists the tx_hash in the same
// write as the Submitted status, so a crash after broadcast but before
// that write leaves a Submitting batch without a tx_hash, and it is
// broadcast again.
func (o *Orchestrator) handleSubmitting(ctx context.Context, b *batch.Batch) {
	strategy, ok := o.cfg.Strategies[b.DAMode]
	if !ok {
		o.fail(ctx, b, "no DA strategy configured for mode "+string(b.DAMode))
		return
	}

	if b.Status == batch.Proved {
		if err := b.Advance(batch.Submitting); err != nil {
			o.logger.Printf("batch %s: %v", b.ID, err)
			return
		}
		if err := o.cfg.Store.Upsert(ctx, b); err != nil {
			o.logger.Printf("batch %s: failed to persist Submitting: %v", b.ID, err)
			return
		}
		o.recordTransition(batch.Proved, batch.Submitting)
	}

	if b.TxHash != nil {
		conf, err := strategy.CheckConfirmation(ctx, txHash(b.TxHash))
		if err == nil && conf.State != l1.StateNotFound {
			o.markSubmitted(ctx, b, *b.TxHash, b.BlobVersionedHash)
			return
		}
		// NotFound or lookup failure: fall through and (re)broadcast.
	}

	breaker := o.cfg.Breakers["l1"]
	if breaker != nil && !breaker.Allow() {
		o.recordExternalCall("l1", "busy")
		o.recordBreakerState("l1", breaker)
		return
	}

	start := time.Now()
	result, err := strategy.Submit(ctx, b)
	elapsed := time.Since(start)

	if err != nil {
		if breaker != nil {
			breaker.Failure()
			o.recordBreakerState("l1", breaker)
		}
		o.recordExternalCallDuration("l1", "error", elapsed)

		var daErr *da.Error
		if errors.As(err, &daErr) && daErr.Kind == da.Permanent {
			o.fail(ctx, b, "da: "+err.Error())
			return
		}
		o.retryOrFail(ctx, b, err.Error())
		return
	}

	if breaker != nil {
		breaker.Success()
		o.recordBreakerState("l1", breaker)
	}
	o.recordExternalCallDuration("l1", "success", elapsed)

	var versionedHash *[32]byte
	if result.BlobVersionedHash != nil {
		versionedHash = result.BlobVersionedHash
	}
	o.markSubmitted(ctx, b, result.TxHash, versionedHash)
}

func (o *Orchestrator) markSubmitted(ctx context.Context, b *batch.Batch, hash [32]byte, blobVersionedHash *[32]byte) {
	b.TxHash = &hash
	b.BlobVersionedHash = blobVersionedHash
	prev := b.Status
	if err := b.Advance(batch.Submitted); err != nil {
		o.logger.Printf("batch %s: %v", b.ID, err)
		return
	}
	if err := o.cfg.Store.Upsert(ctx, b); err != nil {
		o.logger.Printf("batch %s: failed to persist Submitted: %v", b.ID, err)
		return
	}
	o.recordTransition(prev, batch.Submitted)
}

// handleSubmitted polls confirmation status. Pending is a no-op;
// Mined with sufficient depth advances to Confirmed; Reverted or a
// NotFound that persists past NotFoundGrace triggers resubmit, a fresh
// broadcast that keeps the batch in Submitted.
func (o *Orchestrator) handleSubmitted(ctx context.Context, b *batch.Batch) {
	strategy, ok := o.cfg.Strategies[b.DAMode]
	if !ok || b.TxHash == nil {
		return
	}

	conf, err := strategy.CheckConfirmation(ctx, txHash(b.TxHash))
	if err != nil {
		o.retryOrFail(ctx, b, err.Error())
		return
	}

	switch conf.State {
	case l1.StatePending:
		return
	case l1.StateMined:
		b.GasUsed = conf.GasUsed
		b.Confirmations = conf.Confirmations
		if conf.Confirmations < o.cfg.RequiredConfirmations {
			_ = o.cfg.Store.Upsert(ctx, b) // persist confirmation depth progress
			return
		}
		if err := b.Advance(batch.Confirmed); err != nil {
			o.logger.Printf("batch %s: %v", b.ID, err)
			return
		}
		if err := o.cfg.Store.Upsert(ctx, b); err != nil {
			o.logger.Printf("batch %s: failed to persist Confirmed: %v", b.ID, err)
			return
		}
		o.recordTransition(batch.Submitted, batch.Confirmed)
	case l1.StateReverted:
		o.resubmit(ctx, b, strategy, "transaction reverted on L1")
	case l1.StateNotFound:
		if time.Since(b.UpdatedAt) > o.cfg.NotFoundGrace {
			o.resubmit(ctx, b, strategy, "transaction dropped from mempool")
		}
	}
}

// resubmit handles the Submitted-state transient self-loop: a prior
// broadcast reverted or was dropped from the mempool, so the batch
// stays in Submitted but gets a fresh broadcast (new nonce, fees
// recomputed from the chain head per the current policy; they are not
// raised relative to the prior attempt's fees). attempts is bumped exactly like retryOrFail;
// once exhausted the batch dead-letters the same way.
func (o *Orchestrator) resubmit(ctx context.Context, b *batch.Batch, strategy da.Strategy, reason string) {
	b.Attempts++
	b.LastError = reason

	if o.cfg.RetryPolicy.Exhausted(b.Attempts) {
		o.fail(ctx, b, reason)
		return
	}

	breaker := o.cfg.Breakers["l1"]
	if breaker != nil && !breaker.Allow() {
		o.recordExternalCall("l1", "busy")
		o.recordBreakerState("l1", breaker)
		o.persistRetryState(ctx, b)
		return
	}

	start := time.Now()
	result, err := strategy.Submit(ctx, b)
	elapsed := time.Since(start)

	if err != nil {
		if breaker != nil {
			breaker.Failure()
			o.recordBreakerState("l1", breaker)
		}
		o.recordExternalCallDuration("l1", "error", elapsed)

		var daErr *da.Error
		if errors.As(err, &daErr) && daErr.Kind == da.Permanent {
			o.fail(ctx, b, "da: "+err.Error())
			return
		}
		o.persistRetryState(ctx, b)
		return
	}

	if breaker != nil {
		breaker.Success()
		o.recordBreakerState("l1", breaker)
	}
	o.recordExternalCallDuration("l1", "success", elapsed)

	if b.TxHash != nil {
		o.logger.Printf("batch %s: superseding tx_hash %x with %x on resubmit", b.ID, *b.TxHash, result.TxHash)
	}
	b.TxHash = &result.TxHash
	b.BlobVersionedHash = result.BlobVersionedHash
	if err := o.cfg.Store.Upsert(ctx, b); err != nil {
		o.logger.Printf("batch %s: failed to persist resubmission: %v", b.ID, err)
	}
}

// persistRetryState writes the bumped attempt count/last_error without
// changing status, the shared tail of both retryOrFail and resubmit.
func (o *Orchestrator) persistRetryState(ctx context.Context, b *batch.Batch) {
	if err := o.cfg.Store.Upsert(ctx, b); err != nil {
		o.logger.Printf("batch %s: failed to persist retry state: %v", b.ID, err)
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.TransitionErrors.WithLabelValues(string(b.Status), "transient").Inc()
	}
}

// retryOrFail increments the batch's attempt counter and either
// leaves it for a retry on the next tick or dead-letters it once
// attempts are exhausted. The retry is not delayed by
// RetryPolicy.Backoff; only the tick interval spaces attempts apart.
func (o *Orchestrator) retryOrFail(ctx context.Context, b *batch.Batch, reason string) {
	b.Attempts++
	b.LastError = reason

	if o.cfg.RetryPolicy.Exhausted(b.Attempts) {
		o.fail(ctx, b, reason)
		return
	}
	o.persistRetryState(ctx, b)
}

func (o *Orchestrator) fail(ctx context.Context, b *batch.Batch, reason string) {
	b.Fail(reason)
	if err := o.cfg.Store.Upsert(ctx, b); err != nil {
		o.logger.Printf("batch %s: failed to persist Failed: %v", b.ID, err)
	}
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.TransitionErrors.WithLabelValues(string(b.Status), "permanent").Inc()
		o.cfg.Metrics.BatchAttempts.Observe(float64(b.Attempts))
	}
	o.logger.Printf("batch %s: failed: %s", b.ID, reason)
}

func (o *Orchestrator) recordTransition(from, to batch.Status) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (o *Orchestrator) recordExternalCall(port, outcome string) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ExternalCallSecs.WithLabelValues(port, outcome).Observe(0)
	}
}

func (o *Orchestrator) recordExternalCallDuration(port, outcome string, d time.Duration) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.ExternalCallSecs.WithLabelValues(port, outcome).Observe(d.Seconds())
	}
}

// recordBreakerState publishes breaker's current state to the
// CircuitBreaker gauge, called alongside every Allow/Success/Failure
// so the gauge never lags the breaker's own state machine.
func (o *Orchestrator) recordBreakerState(port string, breaker *resilience.Breaker) {
	if o.cfg.Metrics != nil && breaker != nil {
		o.cfg.Metrics.CircuitBreaker.WithLabelValues(port).Set(metrics.BreakerStateValue(string(breaker.State())))
	}
}

// publicInputsFor builds the public-input byte string sent to the
// prover: the payload's data hash followed by the claimed new root,
// the two values the proof must attest a valid transition between.
func publicInputsFor(b *batch.Batch) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, b.DataHash[:]...)
	buf = append(buf, b.NewRoot[:]...)
	return buf
}

func txHash(h *[32]byte) common.Hash {
	if h == nil {
		return common.Hash{}
	}
	return common.Hash(*h)
}
