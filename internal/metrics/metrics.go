// Package metrics defines the Prometheus collectors for the Outfitly server.
// Everything is registered on the default registry and scraped via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsStarted counts generation jobs accepted for processing.
	JobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outfitly_jobs_started_total",
		Help: "Number of generation jobs submitted.",
	})

	// JobsCompleted counts jobs that reached the complete state.
	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outfitly_jobs_completed_total",
		Help: "Number of generation jobs that completed successfully.",
	})

	// JobsFailed counts jobs that reached the failed state.
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outfitly_jobs_failed_total",
		Help: "Number of generation jobs that failed.",
	})

	// OutfitsGenerated counts individual outfits produced across all jobs.
	OutfitsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outfitly_outfits_generated_total",
		Help: "Number of outfits produced by providers.",
	})

	// GenerationDuration observes wall-clock time per generation job.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outfitly_generation_duration_seconds",
		Help:    "Wall-clock duration of generation jobs.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Decisions counts candidate-item decisions by kind.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outfitly_decisions_total",
		Help: "Number of candidate-item decisions recorded.",
	}, []string{"decision"})

	// StreamSubscribers tracks currently connected websocket subscribers.
	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outfitly_stream_subscribers",
		Help: "Currently connected progress-stream subscribers.",
	})
)
