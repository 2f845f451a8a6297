// Package metrics defines the Prometheus instrumentation for the
// analysis pipeline, exposed on the server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corridor_analyses_total",
			Help: "Total corridor analyses by outcome confidence",
		},
		[]string{"confidence"},
	)

	AnalysisFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corridor_analysis_failures_total",
			Help: "Total failed analyses by stage",
		},
		[]string{"stage"},
	)

	SourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corridor_source_outcomes_total",
			Help: "Per-source fetch outcomes, live vs estimated",
		},
		[]string{"source", "mode"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corridor_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
)

// ObserveSource records whether a source produced live or estimated data.
func ObserveSource(source string, estimated bool) {
	mode := "live"
	if estimated {
		mode = "estimated"
	}
	SourceOutcomes.WithLabelValues(source, mode).Inc()
}
