package staffapi

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"loan-intake/internal/lending"
)

var (
	// ErrUnsuccessful means the backend answered 2xx with success=false.
	ErrUnsuccessful = errors.New("staff api reported failure")
	// ErrSigningTimeout means polling ran out of attempts before the
	// application reached a terminal signing status.
	ErrSigningTimeout = errors.New("signing not completed")
)

// APIError is a non-2xx response the client does not recover from.
type APIError struct {
	StatusCode int
	Body       string
}

const maxErrorMessageBody = 256

func (e *APIError) Error() string {
	return fmt.Sprintf("staff api returned status %d: %s", e.StatusCode, truncateBody(e.Body, maxErrorMessageBody))
}

// truncateBody cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Temporary reports whether a later attempt may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

type productsResponse struct {
	Success  bool                    `json:"success"`
	Products []lending.LenderProduct `json:"products"`
	Message  string                  `json:"message,omitempty"`
}

// ApplicationPayload is the assembled multi-step form. Step 1 is the
// business profile, step 3 the business details and step 4 the applicant.
type ApplicationPayload struct {
	Step1 map[string]interface{} `json:"step1"`
	Step3 map[string]interface{} `json:"step3"`
	Step4 map[string]interface{} `json:"step4"`
}

// SubmissionResult is the outcome of CreateApplication. Duplicate is set
// when the backend reported an existing application and its id was reused.
type SubmissionResult struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate"`
}

type createResponse struct {
	ApplicationID         string `json:"applicationId"`
	ID                    string `json:"id"`
	ExistingApplicationID string `json:"existingApplicationId"`
	Status                string `json:"status"`
	Application           *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"application"`
}

func (r createResponse) id() string {
	switch {
	case r.ApplicationID != "":
		return r.ApplicationID
	case r.Application != nil && r.Application.ID != "":
		return r.Application.ID
	case r.ExistingApplicationID != "":
		return r.ExistingApplicationID
	}
	return r.ID
}

func (r createResponse) status() string {
	if r.Status != "" {
		return r.Status
	}
	if r.Application != nil {
		return r.Application.Status
	}
	return ""
}

// UploadRequest is one document file.
type UploadRequest struct {
	DocumentType string
	FileName     string
	Data         []byte
}

// UploadResult mirrors the upload endpoint's response. Fallback is set when
// the backend stored the file locally because object storage was down.
type UploadResult struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Storage    string `json:"storage"`
	Fallback   bool   `json:"fallback"`
	StorageKey string `json:"storageKey,omitempty"`
	Checksum   string `json:"checksum,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SigningStatus is the e-signature state of an application.
type SigningStatus struct {
	Status     string `json:"status"`
	SignURL    string `json:"signUrl,omitempty"`
	Overridden bool   `json:"overridden,omitempty"`
}

// Terminal reports whether signing is finished.
func (s SigningStatus) Terminal() bool {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case "signed", "completed":
		return true
	}
	return false
}
