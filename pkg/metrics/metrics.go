// Copyright 2025 Certen Protocol
//
// Metrics registers the counters and histograms the orchestrator
// updates on every state transition and external call. Exposing them
// over HTTP is out of scope; main.go only wires the registry so an
// embedding deployment can mount it on its own mux.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the submitter's Prometheus collectors behind a
// private *prometheus.Registry, the way the teacher's HealthLogger
// owns its own registry rather than registering against the global
// default one.
type Registry struct {
	registry *prometheus.Registry

	Transitions      *prometheus.CounterVec
	TransitionErrors *prometheus.CounterVec
	ExternalCallSecs *prometheus.HistogramVec
	CircuitBreaker   *prometheus.GaugeVec
	PendingBatches   prometheus.Gauge
	BatchAttempts    prometheus.Histogram
}

// New constructs and registers all collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_submitter_transitions_total",
			Help: "Count of batch status transitions, labeled by from and to status.",
		}, []string{"from", "to"}),
		TransitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_submitter_transition_errors_total",
			Help: "Count of failed transition attempts, labeled by status and error kind.",
		}, []string{"status", "kind"}),
		ExternalCallSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_submitter_external_call_duration_seconds",
			Help:    "Latency of external calls made while advancing a batch, labeled by port and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"port", "outcome"}),
		CircuitBreaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_submitter_circuit_breaker_state",
			Help: "Circuit breaker state per port: 0=closed, 1=half_open, 2=open.",
		}, []string{"port"}),
		PendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_submitter_pending_batches",
			Help: "Number of non-terminal batches observed on the last orchestrator tick.",
		}),
		BatchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_submitter_batch_attempts",
			Help:    "Distribution of attempts consumed by batches reaching a terminal state.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
	}

	reg.MustRegister(
		r.Transitions,
		r.TransitionErrors,
		r.ExternalCallSecs,
		r.CircuitBreaker,
		r.PendingBatches,
		r.BatchAttempts,
	)
	return r
}

// Gatherer exposes the underlying registry for an embedder's own
// promhttp.Handler wiring.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// BreakerStateValue maps a breaker state name to the gauge value
// convention documented on CircuitBreaker.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
