// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes. Codes double as
// BPMN error codes caught by boundary events in the intake process.
type ErrorCode string

const (
	ErrCodeParseError ErrorCode = "PARSE_ERROR"

	ErrCodeInvalidApplicantProfile     ErrorCode = "INVALID_APPLICANT_PROFILE"
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeDocumentValidationFailed    ErrorCode = "DOCUMENT_VALIDATION_FAILED"

	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeNoEligibleProducts ErrorCode = "NO_ELIGIBLE_PRODUCTS"

	ErrCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeSubmissionRejected   ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeSubmissionFailed     ErrorCode = "SUBMISSION_FAILED"
	ErrCodeUploadFailed         ErrorCode = "UPLOAD_FAILED"
	ErrCodeSigningStatusFailed  ErrorCode = "SIGNING_STATUS_FAILED"
	ErrCodeSigningTimeout       ErrorCode = "SIGNING_TIMEOUT"

	ErrCodeDatabaseInsertFailed   ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

var messages = map[ErrorCode]string{
	ErrCodeParseError:                  "Job variables could not be parsed",
	ErrCodeInvalidApplicantProfile:     "Applicant profile is incomplete",
	ErrCodeApplicationValidationFailed: "Application data validation failed",
	ErrCodeDocumentValidationFailed:    "Document failed validation",
	ErrCodeCatalogUnavailable:          "Lender product catalog unavailable",
	ErrCodeNoEligibleProducts:          "No lender products match the profile",
	ErrCodeDuplicateApplication:        "Application already exists",
	ErrCodeSubmissionRejected:          "Staff backend rejected the application",
	ErrCodeSubmissionFailed:            "Application submission failed",
	ErrCodeUploadFailed:                "Document upload failed",
	ErrCodeSigningStatusFailed:         "Signature status check failed",
	ErrCodeSigningTimeout:              "Signature not completed in time",
	ErrCodeDatabaseInsertFailed:        "Database insert operation failed",
	ErrCodeNotificationSendFailed:      "Notification delivery failed",
	ErrCodeExternalService:             "External service error",
	ErrCodeTimeout:                     "Service timeout",
	ErrCodeResourceNotFound:            "Resource not found",
	ErrCodeInternal:                    "Unexpected error",
}

// Wrap builds a StandardError for code around err. Retryability follows
// GetRetryCount.
func Wrap(code ErrorCode, err error) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   messages[code],
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if e.Message == "" {
		e.Message = string(code)
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// NewApplicationValidationFailedError creates a non-retryable application validation error.
func NewApplicationValidationFailedError(details string) *StandardError {
	e := Wrap(ErrCodeApplicationValidationFailed, nil)
	e.Details = details
	return e
}

// NewDocumentValidationFailedError reports the validator's findings.
func NewDocumentValidationFailedError(status string, problems []string) *StandardError {
	e := Wrap(ErrCodeDocumentValidationFailed, nil)
	e.Details = strings.Join(problems, "; ")
	return e.WithMetadata("validationStatus", status)
}

// NewDuplicateApplicationError creates a non-retryable duplicate application error.
func NewDuplicateApplicationError(applicationID string) *StandardError {
	e := Wrap(ErrCodeDuplicateApplication, nil)
	e.Details = fmt.Sprintf("applicationId: %s", applicationID)
	return e
}

func NewExternalServiceError(service string, err error) *StandardError {
	e := Wrap(ErrCodeExternalService, err)
	e.Message = fmt.Sprintf("External service '%s' error", service)
	return e
}

func NewTimeoutError(service string, err error) *StandardError {
	e := Wrap(ErrCodeTimeout, err)
	e.Message = fmt.Sprintf("Service '%s' timeout", service)
	return e
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns how many attempts an error code gets before the
// error is thrown to the process. Submission and upload failures are thrown
// at once so the process surfaces them to the applicant, who decides whether
// to try again.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogUnavailable,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeSigningStatusFailed,
		ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CATALOG") || strings.Contains(codeStr, "PRODUCTS"):
		return "CATALOG"
	case strings.Contains(codeStr, "SUBMISSION") || strings.Contains(codeStr, "DUPLICATE"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "UPLOAD") || strings.Contains(codeStr, "DOCUMENT"):
		return "DOCUMENTS"
	case strings.Contains(codeStr, "SIGNING"):
		return "SIGNING"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
