package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files seen by ingestion, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	IngestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Bytes committed by ingestion",
		},
		[]string{"kind"},
	)

	IngestBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Ingestion batches by outcome",
		},
		[]string{"status"},
	)

	LifecycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by target state and outcome",
		},
		[]string{"to", "status"},
	)

	LedgerRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "ledger",
			Name:      "quota_rejections_total",
			Help:      "Reservations rejected for exceeding quota",
		},
	)

	SweepAssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "sweeper",
			Name:      "assets_total",
			Help:      "Assets handled by the retention sweeper",
		},
		[]string{"status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "media_vault",
			Subsystem: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Retention sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Blob store operations by outcome",
		},
		[]string{"operation", "status"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "media_vault",
			Subsystem: "storage",
			Name:      "duration_seconds",
			Help:      "Blob store operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"operation"},
	)

	ImportTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "media_vault",
			Subsystem: "import",
			Name:      "tasks_total",
			Help:      "Remote import tasks by outcome",
		},
		[]string{"status"},
	)
)

// RecordIngestFile records one file's ingestion outcome.
func RecordIngestFile(kind, status string, bytes uint64) {
	IngestFilesTotal.WithLabelValues(kind, status).Inc()
	if status == "success" {
		IngestBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
}

// RecordIngestBatch records a batch outcome.
func RecordIngestBatch(status string) {
	IngestBatchesTotal.WithLabelValues(status).Inc()
}

// RecordTransition records a lifecycle transition attempt.
func RecordTransition(to, status string) {
	LifecycleTransitionsTotal.WithLabelValues(to, status).Inc()
}

// RecordQuotaRejection records a reservation refused by the ledger.
func RecordQuotaRejection() {
	LedgerRejectionsTotal.Inc()
}

// RecordSweep records the result counts of one sweep.
func RecordSweep(purged, skipped, failed int, durationSec float64) {
	SweepAssetsTotal.WithLabelValues("purged").Add(float64(purged))
	SweepAssetsTotal.WithLabelValues("skipped").Add(float64(skipped))
	SweepAssetsTotal.WithLabelValues("failed").Add(float64(failed))
	SweepDuration.Observe(durationSec)
}

// RecordStorageOperation records a blob store call.
func RecordStorageOperation(operation, status string, durationSec float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageDuration.WithLabelValues(operation).Observe(durationSec)
}

// RecordImport records a finished import task.
func RecordImport(status string) {
	ImportTasksTotal.WithLabelValues(status).Inc()
}
