// Package metrics provides Prometheus metrics for the Sage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GridBuildsTotal tracks assembled planning grids by outcome
	GridBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "grid",
			Name:      "builds_total",
			Help:      "Total number of planning grids assembled by status",
		},
		[]string{"tenant_id", "status"},
	)

	// GridBuildDuration tracks grid assembly duration in seconds
	GridBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "grid",
			Name:      "build_duration_seconds",
			Help:      "Duration of planning grid assembly in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"tenant_id"},
	)

	// CellsWrittenTotal tracks planning cells written by bulk updates
	CellsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "planning_data",
			Name:      "cells_written_total",
			Help:      "Total number of planning cells written by status",
		},
		[]string{"tenant_id", "status"},
	)

	// BulkUpdateDuration tracks bulk cell write duration in seconds
	BulkUpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "planning_data",
			Name:      "bulk_update_duration_seconds",
			Help:      "Duration of bulk planning data writes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tenant_id"},
	)

	// AlertsRaisedTotal tracks alerts raised by severity
	AlertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "alerting",
			Name:      "alerts_raised_total",
			Help:      "Total number of alerts raised by severity",
		},
		[]string{"tenant_id", "severity"},
	)

	// VersionTransitionsTotal tracks version lifecycle transitions
	VersionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "versioning",
			Name:      "transitions_total",
			Help:      "Total number of version status transitions",
		},
		[]string{"tenant_id", "to_status"},
	)

	// VersionCopyDuration tracks version copy duration in seconds
	VersionCopyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "versioning",
			Name:      "copy_duration_seconds",
			Help:      "Duration of version copy operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// VersionLockContention tracks bulk writes rejected by a held version lock
	VersionLockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "versioning",
			Name:      "lock_contention_total",
			Help:      "Total number of writes rejected because the version lock was held",
		},
		[]string{"tenant_id"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordGridBuild records a grid assembly metric
func RecordGridBuild(tenantID, status string, durationSeconds float64) {
	GridBuildsTotal.WithLabelValues(tenantID, status).Inc()
	GridBuildDuration.WithLabelValues(tenantID).Observe(durationSeconds)
}

// RecordBulkUpdate records a bulk cell write metric
func RecordBulkUpdate(tenantID, status string, cells int, durationSeconds float64) {
	CellsWrittenTotal.WithLabelValues(tenantID, status).Add(float64(cells))
	BulkUpdateDuration.WithLabelValues(tenantID).Observe(durationSeconds)
}

// RecordAlertRaised records a raised alert
func RecordAlertRaised(tenantID, severity string) {
	AlertsRaisedTotal.WithLabelValues(tenantID, severity).Inc()
}

// RecordVersionTransition records a version status transition
func RecordVersionTransition(tenantID, toStatus string) {
	VersionTransitionsTotal.WithLabelValues(tenantID, toStatus).Inc()
}
