// Package metrics defines the prometheus instruments of the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// ImagesProcessedTotal counts images settled by the batch pipeline, by status
	ImagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_images_processed_total",
			Help: "Images settled by the batch pipeline, by status (ok/failed)",
		},
		[]string{"status"},
	)

	// BatchDuration tracks full batch run duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_batch_duration_seconds",
			Help:    "Duration of one full batch run in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// StaleBatchesDiscarded counts batch runs superseded before completion
	StaleBatchesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_stale_batches_discarded_total",
			Help: "Batch runs whose results were discarded because a newer run started",
		},
	)
)

// Processor client metrics
var (
	// ProcessorRequestsTotal counts requests to the processing service, by endpoint and status
	ProcessorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_requests_total",
			Help: "Requests to the remote processing service, by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// ProcessorRequestDuration tracks processing request latency in seconds
	ProcessorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_request_duration_seconds",
			Help:    "Processing service request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// ProcessorCircuitState tracks the breaker state (0=closed, 1=half-open, 2=open)
	ProcessorCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "processor_circuit_state",
			Help: "Processing service circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Session metrics
var (
	// StoredImages tracks the number of images currently loaded
	StoredImages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_stored_images",
			Help: "Number of images currently loaded in the session",
		},
	)

	// HistoryCommitsTotal counts committed undo entries
	HistoryCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_history_commits_total",
			Help: "Debounced configuration commits pushed onto the undo stack",
		},
	)

	// ConnectedClients tracks WebSocket clients attached to the event stream
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_connected_clients",
			Help: "WebSocket clients attached to the session event stream",
		},
	)

	// EventsDroppedTotal counts events dropped on slow client channels
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_events_dropped_total",
			Help: "Events dropped because a client send buffer was full",
		},
	)
)
