package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestJobTimer(t *testing.T) {
	const task = "metrics-test-task"

	StartJob(task).Done("")
	StartJob(task).Done("UPLOAD_FAILED")
	running := StartJob(task)

	assert.Equal(t, float64(1), testutil.ToFloat64(WorkerJobsCompleted.WithLabelValues(task)))
	assert.Equal(t, float64(1), testutil.ToFloat64(WorkerJobsFailed.WithLabelValues(task, "UPLOAD_FAILED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(WorkerJobsActive.WithLabelValues(task)))

	running.Done("")
	assert.Equal(t, float64(0), testutil.ToFloat64(WorkerJobsActive.WithLabelValues(task)))
	assert.Equal(t, 1, testutil.CollectAndCount(WorkerJobDuration, "worker_job_duration_seconds"))
}
