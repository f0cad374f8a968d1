// internal/workers/application/upload-document/config.go
package uploaddocument

import (
	"time"

	"loan-intake/internal/lending"
)

type Config struct {
	Timeout time.Duration
	Limits  lending.ValidationLimits
	// RejectSuspicious also refuses files graded suspicious. By default only
	// placeholder and invalid files are refused.
	RejectSuspicious bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
		Limits:  lending.DefaultValidationLimits(),
	}
}
