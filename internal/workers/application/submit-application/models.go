// internal/workers/application/submit-application/models.go
package submitapplication

type Input struct {
	Step1 map[string]interface{} `json:"step1"`
	Step3 map[string]interface{} `json:"step3"`
	Step4 map[string]interface{} `json:"step4"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	Duplicate     bool   `json:"duplicate"`
	LedgerID      string `json:"ledgerId,omitempty"`
	SubmittedAt   string `json:"submittedAt"` // ISO 8601
}
