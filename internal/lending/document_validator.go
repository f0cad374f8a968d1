package lending

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationStatus grades an uploaded document.
type ValidationStatus string

const (
	StatusAuthentic   ValidationStatus = "authentic"
	StatusSuspicious  ValidationStatus = "suspicious"
	StatusPlaceholder ValidationStatus = "placeholder"
	StatusInvalid     ValidationStatus = "invalid"
)

// severity orders statuses so that a later check never downgrades an
// earlier, worse verdict.
func (s ValidationStatus) severity() int {
	switch s {
	case StatusInvalid:
		return 3
	case StatusPlaceholder:
		return 2
	case StatusSuspicious:
		return 1
	}
	return 0
}

func (s ValidationStatus) worse(other ValidationStatus) ValidationStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// ValidationLimits bounds accepted document sizes in bytes.
type ValidationLimits struct {
	MinSize        int64
	MaxSize        int64
	SuspiciousSize int64
}

func DefaultValidationLimits() ValidationLimits {
	return ValidationLimits{
		MinSize:        5 * 1024,
		MaxSize:        100 * 1024 * 1024,
		SuspiciousSize: 10 * 1024,
	}
}

var placeholderIndicators = []string{
	"sample", "example", "test", "placeholder", "demo", "template",
	"dummy", "fake", "mock", "specimen", "draft",
}

var (
	imageOrPDF  = []string{".pdf", ".png", ".jpg", ".jpeg"}
	spreadsheet = []string{".pdf", ".xlsx", ".xls"}
	ledger      = []string{".pdf", ".xlsx", ".csv"}
)

var expectedExtensions = map[DocumentKey][]string{
	DocBankStatements:      imageOrPDF,
	DocTaxReturns:          {".pdf"},
	DocFinancialStatements: spreadsheet,
	DocBusinessLicense:     imageOrPDF,
	DocAccountsReceivable:  ledger,
	DocAccountsPayable:     ledger,
	DocProfitLossStatement: spreadsheet,
	DocBalanceSheet:        spreadsheet,
	DocCashFlowStatement:   spreadsheet,
}

var minimumSizes = map[DocumentKey]int64{
	DocBankStatements:      50000,
	DocTaxReturns:          100000,
	DocFinancialStatements: 30000,
	DocBusinessLicense:     20000,
	DocAccountsReceivable:  10000,
	DocAccountsPayable:     10000,
	DocProfitLossStatement: 25000,
	DocBalanceSheet:        25000,
	DocCashFlowStatement:   25000,
}

// DocumentValidation is the verdict for one file.
type DocumentValidation struct {
	FileName      string           `json:"fileName"`
	DocumentType  DocumentKey      `json:"documentType"`
	Status        ValidationStatus `json:"status"`
	Valid         bool             `json:"valid"`
	ContentLength int64            `json:"contentLength"`
	Checksum      string           `json:"checksumSha256"`
	Errors        []string         `json:"errors"`
}

// ValidateDocument checks a file's size, name and extension against what
// the document type normally looks like and returns its checksum.
func ValidateDocument(fileName string, data []byte, docType DocumentKey, limits ValidationLimits) DocumentValidation {
	size := int64(len(data))
	sum := sha256.Sum256(data)
	v := DocumentValidation{
		FileName:      fileName,
		DocumentType:  docType,
		Status:        StatusAuthentic,
		ContentLength: size,
		Checksum:      hex.EncodeToString(sum[:]),
		Errors:        []string{},
	}

	flag := func(status ValidationStatus, format string, args ...interface{}) {
		v.Status = v.Status.worse(status)
		v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	}

	if limits.MinSize > 0 && size < limits.MinSize {
		flag(StatusInvalid, "file too small: %d bytes (minimum %d bytes)", size, limits.MinSize)
	}
	if limits.MaxSize > 0 && size > limits.MaxSize {
		flag(StatusInvalid, "file too large: %d bytes (maximum %d bytes)", size, limits.MaxSize)
	}

	placeholder := hasPlaceholderIndicator(fileName)
	if placeholder {
		flag(StatusPlaceholder, "filename contains placeholder indicators")
	}
	if !placeholder && limits.SuspiciousSize > 0 && size < limits.SuspiciousSize {
		flag(StatusSuspicious, "file size unusually small for business document")
	}

	if exts, ok := expectedExtensions[docType]; ok {
		ext := strings.ToLower(filepath.Ext(fileName))
		if !containsString(exts, ext) {
			flag(StatusSuspicious, "invalid file type for %s, expected one of %s", docType, strings.Join(exts, ", "))
		}
	}
	if floor, ok := minimumSizes[docType]; ok && size < floor {
		flag(StatusSuspicious, "file size too small for %s (%d bytes < %d bytes)", docType, size, floor)
	}

	v.Valid = v.Status == StatusAuthentic
	return v
}

// DocumentUpload is one file of a set to validate.
type DocumentUpload struct {
	FileName     string
	Data         []byte
	DocumentType DocumentKey
}

// SetSummary counts documents per status.
type SetSummary struct {
	Total       int `json:"totalDocuments"`
	Authentic   int `json:"validDocuments"`
	Placeholder int `json:"placeholderDocuments"`
	Suspicious  int `json:"suspiciousDocuments"`
	Invalid     int `json:"invalidDocuments"`
}

// SetValidation is the verdict for a batch of documents. Suspicious files
// do not fail the set; placeholders and invalid files do.
type SetValidation struct {
	Valid   bool                 `json:"valid"`
	Results []DocumentValidation `json:"results"`
	Summary SetSummary           `json:"summary"`
}

func ValidateDocumentSet(docs []DocumentUpload, limits ValidationLimits) SetValidation {
	out := SetValidation{
		Results: make([]DocumentValidation, 0, len(docs)),
		Summary: SetSummary{Total: len(docs)},
	}
	for _, d := range docs {
		r := ValidateDocument(d.FileName, d.Data, d.DocumentType, limits)
		out.Results = append(out.Results, r)
		switch r.Status {
		case StatusAuthentic:
			out.Summary.Authentic++
		case StatusPlaceholder:
			out.Summary.Placeholder++
		case StatusSuspicious:
			out.Summary.Suspicious++
		case StatusInvalid:
			out.Summary.Invalid++
		}
	}
	out.Valid = out.Summary.Placeholder == 0 && out.Summary.Invalid == 0
	return out
}

func hasPlaceholderIndicator(fileName string) bool {
	lower := strings.ToLower(fileName)
	for _, indicator := range placeholderIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
