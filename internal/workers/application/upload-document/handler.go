// internal/workers/application/upload-document/handler.go
package uploaddocument

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"loan-intake/internal/common/database"
	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/staffapi"
	"loan-intake/internal/lending"
)

const (
	TaskType = "upload-document"
)

var (
	ErrInvalidInput     = errors.New("APPLICATION_VALIDATION_FAILED")
	ErrDocumentRejected = errors.New("DOCUMENT_VALIDATION_FAILED")
	ErrUploadFailed     = errors.New("UPLOAD_FAILED")
)

// rejection carries the validator's verdict for a refused file.
type rejection struct {
	validation lending.DocumentValidation
}

func (r *rejection) Error() string {
	return fmt.Sprintf("%s: %s graded %s", ErrDocumentRejected, r.validation.FileName, r.validation.Status)
}

func (r *rejection) Unwrap() error { return ErrDocumentRejected }

type Uploader interface {
	UploadDocument(ctx context.Context, applicationID string, upload staffapi.UploadRequest) (*staffapi.UploadResult, error)
}

type Handler struct {
	config *Config
	staff  Uploader
	db     *sql.DB
	logger logger.Logger
	errors *commonerrors.ErrorHandler
}

// NewHandler wires the worker. A nil db skips the document ledger.
func NewHandler(config *Config, staff Uploader, db *sql.DB, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		staff:  staff,
		db:     db,
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
	if input.ApplicationID == "" || input.FileName == "" {
		return nil, fmt.Errorf("%w: applicationId and fileName are required", ErrInvalidInput)
	}

	data, err := decodeFileData(input.FileData)
	if err != nil {
		return nil, fmt.Errorf("%w: fileData: %v", ErrInvalidInput, err)
	}

	docType := lending.NormalizeDocument(input.DocumentType)
	if docType == "" {
		docType = lending.DocOther
	}

	verdict := lending.ValidateDocument(input.FileName, data, docType, h.config.Limits)
	metrics.DocumentValidations.WithLabelValues(string(verdict.Status)).Inc()
	if h.refuses(verdict.Status) {
		h.logger.Warn("document refused", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"fileName":      input.FileName,
			"status":        verdict.Status,
			"problems":      verdict.Errors,
		})
		return nil, &rejection{validation: verdict}
	}

	res, err := h.staff.UploadDocument(ctx, input.ApplicationID, staffapi.UploadRequest{
		DocumentType: string(docType),
		FileName:     input.FileName,
		Data:         data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if res.Fallback {
		h.logger.Warn("staff backend stored document in fallback storage", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"documentId":    res.DocumentID,
			"storage":       res.Storage,
		})
	}

	if h.db != nil {
		h.recordDocument(ctx, input, res, verdict)
	}

	h.logger.Info("document uploaded", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"documentId":    res.DocumentID,
		"documentType":  docType,
		"status":        verdict.Status,
	})

	return &Output{
		DocumentID:   res.DocumentID,
		DocumentType: docType,
		Storage:      res.Storage,
		Fallback:     res.Fallback,
		Checksum:     verdict.Checksum,
		Validation:   verdict,
	}, nil
}

func (h *Handler) refuses(status lending.ValidationStatus) bool {
	switch status {
	case lending.StatusInvalid, lending.StatusPlaceholder:
		return true
	case lending.StatusSuspicious:
		return h.config.RejectSuspicious
	}
	return false
}

// recordDocument writes the ledger row. The file already reached the staff
// backend, so failures here are logged and the job still completes.
func (h *Handler) recordDocument(ctx context.Context, input *Input, res *staffapi.UploadResult, verdict lending.DocumentValidation) {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO application_documents (
			id, staff_application_id, staff_document_id, document_type, file_name,
			size_bytes, checksum_sha256, validation_status, storage, fallback
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(),
		input.ApplicationID,
		res.DocumentID,
		string(verdict.DocumentType),
		input.FileName,
		verdict.ContentLength,
		verdict.Checksum,
		string(verdict.Status),
		res.Storage,
		res.Fallback,
	)
	if err != nil {
		h.logger.Warn("document ledger insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": input.ApplicationID,
		})
		return
	}

	details, _ := json.Marshal(map[string]interface{}{
		"documentId": res.DocumentID,
		"fileName":   input.FileName,
		"status":     verdict.Status,
	})
	if err := database.WriteAudit(ctx, h.db, database.AuditEntry{
		EntityID: input.ApplicationID,
		Action:   "document_uploaded",
		Details:  details,
	}); err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": input.ApplicationID,
		})
	}
}

// decodeFileData accepts standard or unpadded base64 and strips a
// "data:<mime>;base64," prefix.
func decodeFileData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, errors.New("empty")
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}

func mapError(err error) *commonerrors.StandardError {
	var rej *rejection
	switch {
	case errors.As(err, &rej):
		return commonerrors.NewDocumentValidationFailedError(string(rej.validation.Status), rej.validation.Errors)
	case errors.Is(err, ErrInvalidInput):
		return commonerrors.NewApplicationValidationFailedError(err.Error())
	case errors.Is(err, ErrUploadFailed):
		return commonerrors.Wrap(commonerrors.ErrCodeUploadFailed, err)
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
