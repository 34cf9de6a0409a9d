// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_queries_total",
			Help: "Total queries handled, by category and outcome",
		},
		[]string{"category", "status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "orchestrator_stage_duration_seconds",
			Help: "Duration of each orchestration stage in seconds",
		},
		[]string{"stage"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_provider_calls_total",
			Help: "Provider calls by provider id and outcome",
		},
		[]string{"provider", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by tier and outcome",
		},
		[]string{"tier", "result"},
	)

	ValidationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_outcomes_total",
			Help: "Validation pipeline terminal states",
		},
		[]string{"state"},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_calls_total",
			Help: "Model gateway calls by tier and outcome",
		},
		[]string{"tier", "status"},
	)
)
