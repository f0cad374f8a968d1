// internal/workers/application/upload-document/models.go
package uploaddocument

import "loan-intake/internal/lending"

type Input struct {
	ApplicationID string `json:"applicationId"`
	DocumentType  string `json:"documentType"`
	FileName      string `json:"fileName"`
	FileData      string `json:"fileData"` // base64, optionally a data URL
}

type Output struct {
	DocumentID   string                     `json:"documentId"`
	DocumentType lending.DocumentKey        `json:"documentType"`
	Storage      string                     `json:"storage"`
	Fallback     bool                       `json:"fallback"`
	Checksum     string                     `json:"checksumSha256"`
	Validation   lending.DocumentValidation `json:"validation"`
}
