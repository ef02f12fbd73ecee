// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncItemsTotal tracks synced observation items by outcome
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Total number of observation items processed by outcome",
		},
		[]string{"outcome"},
	)

	// SyncBatchDuration tracks batch processing duration in seconds
	SyncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "sync",
			Name:      "batch_duration_seconds",
			Help:      "Duration of sync batch processing in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// EnrichmentTasksTotal tracks enrichment task transitions by status
	EnrichmentTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "enrichment",
			Name:      "tasks_total",
			Help:      "Total number of enrichment task transitions by status",
		},
		[]string{"status"},
	)

	// EnrichmentFetchDuration tracks the external re-fetch duration
	EnrichmentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "enrichment",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of external profile re-fetches in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// CacheOperationsTotal tracks profile cache hits and misses
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of profile cache operations by result",
		},
		[]string{"result"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordSyncItem records one observation item's outcome
func RecordSyncItem(outcome string) {
	SyncItemsTotal.WithLabelValues(outcome).Inc()
}

// RecordTaskTransition records an enrichment task status transition
func RecordTaskTransition(status string) {
	EnrichmentTasksTotal.WithLabelValues(status).Inc()
}

// RecordCacheOperation records a cache hit, miss, or invalidation
func RecordCacheOperation(result string) {
	CacheOperationsTotal.WithLabelValues(result).Inc()
}
