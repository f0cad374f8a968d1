// internal/workers/application/check-signing-status/models.go
package checksigningstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	Status     string `json:"signingStatus"`
	SignURL    string `json:"signUrl,omitempty"`
	Signed     bool   `json:"signed"`
	Overridden bool   `json:"overridden"`
	Attempts   int    `json:"attempts"`
}
