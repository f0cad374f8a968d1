// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"loan-intake/internal/common/config"
	"loan-intake/internal/common/logger"
)

// Job outcomes as seen by Instrument.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeThrown    = "error_thrown"
	OutcomeUnknown   = "unknown"
)

// Recorder receives one observation per handled job.
// *observability.Observability satisfies it.
type Recorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// outcomeClient notes which terminal command the handler issued.
type outcomeClient struct {
	worker.JobClient
	outcome string
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.outcome = OutcomeCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.outcome = OutcomeFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.outcome = OutcomeThrown
	return c.JobClient.NewThrowErrorCommand()
}

// Instrument wraps handler so every job reports its duration and outcome to
// rec. A nil rec returns handler unchanged.
func Instrument(taskType string, handler worker.JobHandler, rec Recorder) worker.JobHandler {
	if rec == nil {
		return handler
	}
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		oc := &outcomeClient{JobClient: client, outcome: OutcomeUnknown}
		handler(oc, job)

		ctx := context.Background()
		rec.RecordJobProcessed(ctx, taskType, oc.outcome)
		rec.RecordJobDuration(ctx, taskType, time.Since(start), oc.outcome)
	}
}

// StartWorker opens a job worker for taskType, or returns nil when the
// worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, rec Recorder, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	w := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, rec)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return w
}
