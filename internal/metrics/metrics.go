// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProofRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkcredit_proof_runs_total",
			Help: "Total number of proof runs by mode, backend and status",
		},
		[]string{"mode", "backend", "status"},
	)

	ProofDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zkcredit_proof_duration_seconds",
			Help:    "Duration of prover invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	ProverErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkcredit_prover_errors_total",
			Help: "Total number of prover failures by kind",
		},
		[]string{"kind"},
	)

	// PaddedOutputs counts criteria that lenient parsing filled with false
	// because the executor printed fewer than six outputs.
	PaddedOutputs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zkcredit_prover_padded_outputs_total",
			Help: "Total number of missing circuit outputs padded with false",
		},
	)

	CriterionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkcredit_criterion_outcomes_total",
			Help: "Total number of criterion results by criterion and outcome",
		},
		[]string{"criterion", "outcome"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zkcredit_upstream_requests_total",
			Help: "Total number of accounting API requests by entity and result",
		},
		[]string{"entity", "result"},
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zkcredit_validation_failures_total",
			Help: "Total number of requests rejected by input validation",
		},
	)
)
