// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// CatalogLookups counts where lender products were served from:
	// cache, staff_api, snapshot or empty.
	CatalogLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_catalog_lookups_total",
			Help: "Lender catalog lookups by source",
		},
		[]string{"source"},
	)

	EligibleProducts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_eligible_products",
			Help:    "Number of products eligible for a profile",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	SigningPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_signing_polls_total",
			Help: "Signature status polls by outcome",
		},
		[]string{"outcome"},
	)

	DocumentValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_document_validations_total",
			Help: "Uploaded documents by validation status",
		},
		[]string{"status"},
	)
)

// JobTimer tracks one job from activation to completion.
type JobTimer struct {
	taskType string
	start    time.Time
}

// StartJob marks a job active and returns a timer for it.
func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

// Done records the outcome. An empty errorCode counts as a completion.
func (t *JobTimer) Done(errorCode string) {
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(time.Since(t.start).Seconds())
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
}
