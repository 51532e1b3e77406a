package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"autotrade/internal/pkg/config"
)

// Job label values for the worker metrics. Every scheduled job records
// under one of these names.
const (
	JobCollect = "collect"
	JobWatch   = "watch"
	JobDigest  = "digest"
)

// WorkerMetrics provides Prometheus metrics for the worker process. It
// embeds ConfigMetrics for configuration monitoring and adds per-job
// execution metrics, labeled by job so that collect, watch, and digest
// runs are distinguishable on one dashboard.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Job metrics:
//   - worker_job_runs_total{job,status}
//   - worker_job_duration_seconds{job}
//   - worker_job_items_processed_total{job}
//   - worker_job_last_success_timestamp{job}
type WorkerMetrics struct {
	*config.ConfigMetrics

	// JobRunsTotal counts job runs, labeled by job and by status
	// ("success" or "failure").
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds measures job execution time per job.
	// Buckets span 1s to 30m: collect runs finish in seconds, a full
	// watch pass can take minutes.
	JobDurationSeconds *prometheus.HistogramVec

	// JobItemsProcessedTotal counts the items each job handled:
	// candles for collect, headlines for watch, digests for digest.
	JobItemsProcessedTotal *prometheus.CounterVec

	// JobLastSuccessTimestamp records the Unix timestamp of the last
	// successful run per job. Alerting on its age catches a silently
	// stalled schedule.
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates a WorkerMetrics instance. Metrics register
// with the default Prometheus registry via promauto, so create at most
// one instance per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of scheduled job runs by job and status (success/failure)",
		}, []string{"job", "status"}),

		JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of scheduled job execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}, []string{"job"}),

		JobItemsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_items_processed_total",
			Help: "Total number of items processed by each job (candles, headlines, digests)",
		}, []string{"job"}),

		JobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run of each job",
		}, []string{"job"}),
	}
}

// MustRegister is a no-op kept for the conventional initialization
// sequence. Registration already happened via promauto in
// NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordJobRun increments the run counter for the given job and status.
// Status should be "success" or "failure".
func (m *WorkerMetrics) RecordJobRun(job, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes the execution duration of one run of the
// given job, in seconds.
func (m *WorkerMetrics) RecordJobDuration(job string, seconds float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordItemsProcessed adds the number of items a job run handled to
// that job's counter.
func (m *WorkerMetrics) RecordItemsProcessed(job string, count int) {
	m.JobItemsProcessedTotal.WithLabelValues(job).Add(float64(count))
}

// RecordLastSuccess records the current time as the given job's last
// successful completion.
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
