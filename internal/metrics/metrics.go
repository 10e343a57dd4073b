// Package metrics exposes the Prometheus collectors for the document
// pipeline and search path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// ExtractionsTotal counts extraction attempts by outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_extractions_total",
		Help: "Document text extractions by outcome.",
	}, []string{"status"})

	// CommitsTotal counts redaction commits by outcome.
	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_commits_total",
		Help: "Redaction commits by outcome.",
	}, []string{"status"})

	// RawTextRetainedTotal counts commits where the raw pre-redaction text
	// could not be deleted and remains in storage. Any nonzero value needs
	// operator attention.
	RawTextRetainedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_raw_text_retained_total",
		Help: "Commits that failed to delete raw pre-redaction text.",
	})

	// IndexRunsTotal counts indexing runs by outcome.
	IndexRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_index_runs_total",
		Help: "Document indexing runs by outcome.",
	}, []string{"status"})

	// ChunksIndexedTotal counts chunks written to the vector store.
	ChunksIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_chunks_indexed_total",
		Help: "Chunks embedded and stored.",
	})

	// SearchesTotal counts similarity searches by outcome.
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Similarity searches by outcome.",
	}, []string{"status"})

	// SearchDuration observes end-to-end similarity search latency.
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_duration_seconds",
		Help:    "End-to-end similarity search latency.",
		Buckets: prometheus.DefBuckets,
	})

	// ContextModeTotal counts retrieval decisions by chosen mode.
	ContextModeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "context_mode_total",
		Help: "Context retrieval decisions by mode.",
	}, []string{"mode"})
)
