package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the migration pipeline.
type Metrics struct {
	RecordsConfirmed prometheus.Counter
	RecordsFailed    prometheus.Counter
	RecordsSkipped   prometheus.Counter
	BatchesCommitted prometheus.Counter
	RetriesTotal     prometheus.Counter
	AuditDropped     prometheus.Counter
	SubmitDuration   prometheus.Histogram
}

// New creates and registers all migration metrics.
func New() *Metrics {
	return &Metrics{
		RecordsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_records_confirmed_total",
			Help: "Records confirmed by the destination",
		}),
		RecordsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_records_failed_total",
			Help: "Records that reached terminal failure",
		}),
		RecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_records_skipped_total",
			Help: "Records excluded by validation or overwrite behavior",
		}),
		BatchesCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_batches_committed_total",
			Help: "Batches whose cursor advance was persisted",
		}),
		RetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_submit_retries_total",
			Help: "Submission retries after transient destination errors",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redmig_audit_events_dropped_total",
			Help: "Audit events dropped because the publisher buffer was full",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "redmig_submit_duration_seconds",
			Help:    "Wall time of individual record submissions",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
