// internal/workers/application/submit-application/handler.go
package submitapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/staffapi"
	"loan-intake/internal/common/validation"
)

const (
	TaskType = "submit-application"
)

var (
	ErrValidationFailed     = errors.New("APPLICATION_VALIDATION_FAILED")
	ErrSubmissionRejected   = errors.New("SUBMISSION_REJECTED")
	ErrSubmissionFailed     = errors.New("SUBMISSION_FAILED")
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
)

// Submitter creates applications on the staff backend.
type Submitter interface {
	CreateApplication(ctx context.Context, payload staffapi.ApplicationPayload) (*staffapi.SubmissionResult, error)
}

type Handler struct {
	config    *Config
	staff     Submitter
	db        *sql.DB
	validator *validation.Validator
	logger    logger.Logger
	errors    *commonerrors.ErrorHandler
}

// NewHandler wires the worker. A nil db skips the local ledger.
func NewHandler(config *Config, staff Submitter, db *sql.DB, validator *validation.Validator, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		staff:     staff,
		db:        db,
		validator: validator,
		logger:    l,
		errors:    commonerrors.NewErrorHandler(l),
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
	if err := h.validate(input); err != nil {
		return nil, err
	}

	payload := staffapi.ApplicationPayload{Step1: input.Step1, Step3: input.Step3, Step4: input.Step4}
	res, err := h.staff.CreateApplication(ctx, payload)
	if err != nil {
		var apiErr *staffapi.APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	if res.Duplicate {
		h.logger.Warn("staff backend reported existing application", map[string]interface{}{
			"applicationId": res.ApplicationID,
		})
		if h.config.RejectDuplicates {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateApplication, res.ApplicationID)
		}
	}

	status := res.Status
	if status == "" {
		status = "submitted"
	}

	output := &Output{
		ApplicationID: res.ApplicationID,
		Status:        status,
		Duplicate:     res.Duplicate,
		SubmittedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload: %v", ErrDatabaseInsertFailed, err)
		}
		email, category, country, amount := ledgerFields(input)
		ledgerID, err := recordSubmission(ctx, h.db, ledgerRow{
			StaffApplicationID: res.ApplicationID,
			Status:             status,
			Duplicate:          res.Duplicate,
			ApplicantEmail:     email,
			RequestedAmount:    amount,
			Category:           category,
			Country:            country,
			Payload:            body,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
		}
		output.LedgerID = ledgerID
	}

	h.logger.Info("application submitted", map[string]interface{}{
		"applicationId": output.ApplicationID,
		"status":        output.Status,
		"duplicate":     output.Duplicate,
	})
	return output, nil
}

func (h *Handler) validate(input *Input) error {
	if h.validator == nil {
		return nil
	}
	result, err := h.validator.ValidateInput(TaskType, input)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func mapError(err error) *commonerrors.StandardError {
	switch {
	case errors.Is(err, ErrValidationFailed):
		return commonerrors.NewApplicationValidationFailedError(err.Error())
	case errors.Is(err, ErrSubmissionRejected):
		return commonerrors.Wrap(commonerrors.ErrCodeSubmissionRejected, err)
	case errors.Is(err, ErrSubmissionFailed):
		return commonerrors.Wrap(commonerrors.ErrCodeSubmissionFailed, err)
	case errors.Is(err, ErrDuplicateApplication):
		return commonerrors.Wrap(commonerrors.ErrCodeDuplicateApplication, err)
	case errors.Is(err, ErrDatabaseInsertFailed):
		return commonerrors.Wrap(commonerrors.ErrCodeDatabaseInsertFailed, err)
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
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.Key})
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
