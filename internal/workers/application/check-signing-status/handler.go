// internal/workers/application/check-signing-status/handler.go
package checksigningstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/staffapi"
)

const (
	TaskType = "check-signing-status"
)

var (
	ErrInvalidInput        = errors.New("APPLICATION_VALIDATION_FAILED")
	ErrSigningTimeout      = errors.New("SIGNING_TIMEOUT")
	ErrSigningStatusFailed = errors.New("SIGNING_STATUS_FAILED")
)

// pollTimeout keeps the last status seen when attempts run out.
type pollTimeout struct {
	last     *staffapi.SigningStatus
	attempts int
}

func (e *pollTimeout) Error() string {
	status := "unknown"
	if e.last != nil && e.last.Status != "" {
		status = e.last.Status
	}
	return fmt.Sprintf("%s: still %s after %d attempts", ErrSigningTimeout, status, e.attempts)
}

func (e *pollTimeout) Unwrap() error { return ErrSigningTimeout }

type Signer interface {
	WaitForSignature(ctx context.Context, applicationID string, opts staffapi.PollOptions) (*staffapi.SigningStatus, error)
}

type Handler struct {
	config *Config
	signer Signer
	redis  *redis.Client
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

// NewHandler wires the worker. A nil redis client disables the operator
// override.
func NewHandler(config *Config, signer Signer, rdb *redis.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		signer: signer,
		redis:  rdb,
		logger: l,
		errors: commonerrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, timer, commonerrors.Wrap(commonerrors.ErrCodeParseError, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, timer, mapError(err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, fmt.Errorf("%w: applicationId is required", ErrInvalidInput)
	}

	attempts := 0
	opts := staffapi.PollOptions{
		Interval:    h.config.PollInterval,
		MaxAttempts: h.config.MaxAttempts,
		OnPoll: func(attempt int, status *staffapi.SigningStatus, err error) {
			attempts = attempt
			metrics.SigningPolls.WithLabelValues(pollOutcome(status, err)).Inc()
			if err != nil {
				h.logger.Warn("signature status poll failed", map[string]interface{}{
					"applicationId": input.ApplicationID,
					"attempt":       attempt,
					"error":         err,
				})
			}
		},
	}
	if h.redis != nil {
		opts.Override = overrideCheck(h.redis, OverrideKey(h.config.OverrideKeyPrefix, input.ApplicationID), h.logger)
	}

	status, err := h.signer.WaitForSignature(ctx, input.ApplicationID, opts)
	if err != nil {
		switch {
		case errors.Is(err, staffapi.ErrSigningTimeout):
			return nil, &pollTimeout{last: status, attempts: attempts}
		case errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", ErrSigningStatusFailed, err)
		}
	}

	if status.Overridden {
		metrics.SigningPolls.WithLabelValues("override").Inc()
		h.logger.Info("signing completed by operator override", map[string]interface{}{
			"applicationId": input.ApplicationID,
		})
	}

	h.logger.Info("signing status resolved", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"status":        status.Status,
		"attempts":      attempts,
	})

	return &Output{
		Status:     status.Status,
		SignURL:    status.SignURL,
		Signed:     status.Terminal(),
		Overridden: status.Overridden,
		Attempts:   attempts,
	}, nil
}

func pollOutcome(status *staffapi.SigningStatus, err error) string {
	switch {
	case err != nil:
		return "error"
	case status != nil && status.Terminal():
		return "signed"
	default:
		return "pending"
	}
}

func mapError(err error) *commonerrors.StandardError {
	var timeout *pollTimeout
	switch {
	case errors.As(err, &timeout):
		stdErr := commonerrors.Wrap(commonerrors.ErrCodeSigningTimeout, err)
		if timeout.last != nil {
			stdErr.WithMetadata("lastStatus", timeout.last.Status)
			if timeout.last.SignURL != "" {
				stdErr.WithMetadata("signUrl", timeout.last.SignURL)
			}
		}
		return stdErr
	case errors.Is(err, context.DeadlineExceeded):
		return commonerrors.NewTimeoutError("staff-api", err)
	case errors.Is(err, ErrInvalidInput):
		return commonerrors.NewApplicationValidationFailedError(err.Error())
	case errors.Is(err, ErrSigningStatusFailed):
		return commonerrors.Wrap(commonerrors.ErrCodeSigningStatusFailed, err)
	default:
		return commonerrors.Wrap(commonerrors.ErrCodeInternal, err)
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, timer *metrics.JobTimer, stdErr *commonerrors.StandardError) {
	timer.Done(string(stdErr.Code))
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{"error": err})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
