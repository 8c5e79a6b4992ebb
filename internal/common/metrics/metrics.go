// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of recommendation pipeline runs",
		},
		[]string{"source", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_run_duration_seconds",
			Help: "Duration of end-to-end pipeline runs in seconds",
		},
		[]string{"source"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Total number of language model calls",
		},
		[]string{"stage", "outcome"},
	)

	OfferSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_searches_total",
			Help: "Total number of shopping search backend calls",
		},
		[]string{"outcome"},
	)

	SearchCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_requests_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)

	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Intent gate outcomes for passively monitored messages",
		},
		[]string{"decision"},
	)
)
