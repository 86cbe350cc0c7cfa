// Package metrics holds the engine's Prometheus collectors. Every error
// boundary of the pipeline increments a counter here, since failures are only
// observable through logs and metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts events executed successfully.
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_events_processed_total",
		Help: "Number of events executed successfully.",
	})

	// EventFailures counts events that failed execution (timeout, runtime
	// error, finalize failure) and were dropped from their batch.
	EventFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_event_failures_total",
		Help: "Number of events whose execution failed.",
	})

	// EventDuration observes per-event execution latency.
	EventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_event_duration_seconds",
		Help:    "Per-event execution latency.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	// CursorErrors counts failed event-log reads.
	CursorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_cursor_read_errors_total",
		Help: "Number of failed event log reads.",
	})

	// BatchesPersisted counts persist runs handed to the store.
	BatchesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_batches_persisted_total",
		Help: "Number of result batches persisted.",
	})

	// RowsWritten counts rows written per destination table.
	RowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_rows_written_total",
		Help: "Number of rows written, by table.",
	}, []string{"table"})

	// PersistErrors counts failed bulk inserts per destination table.
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_persist_errors_total",
		Help: "Number of failed bulk inserts, by table.",
	}, []string{"table"})

	// DistinctEventTypes tracks the number of distinct event types seen
	// since startup.
	DistinctEventTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_distinct_event_types",
		Help: "Distinct event types observed since startup.",
	})
)
