// Package metrics provides Prometheus instrumentation for completion calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompletionLatency tracks end-to-end Complete latency in seconds, retries included.
	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kelly_completion_latency_seconds",
			Help:    "End-to-end completion latency in seconds, including backoff waits.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model", "outcome"},
	)

	// CompletionsTotal counts finished completion calls by outcome
	// ("success" or an error kind such as "retries_exhausted").
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelly_completions_total",
			Help: "Total number of completion calls by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// AttemptsTotal counts individual HTTP sends by response status ("transport_error" when none).
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelly_attempts_total",
			Help: "Total number of outbound sends by HTTP status.",
		},
		[]string{"provider", "status"},
	)

	// BackoffSeconds accumulates time spent waiting between throttled attempts.
	BackoffSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelly_backoff_seconds_total",
			Help: "Total time spent in backoff after throttling.",
		},
		[]string{"provider"},
	)

	// ActiveCompletions tracks the number of currently in-flight completion calls.
	ActiveCompletions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kelly_active_completions",
			Help: "Number of currently in-flight completion calls.",
		},
	)

	// SessionsCreated counts conversation sessions started by any front-end.
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kelly_sessions_created_total",
			Help: "Total number of conversation sessions created.",
		},
		[]string{"frontend"},
	)
)
