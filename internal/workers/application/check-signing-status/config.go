// internal/workers/application/check-signing-status/config.go
package checksigningstatus

import "time"

type Config struct {
	// Timeout bounds the whole job and should exceed
	// PollInterval * MaxAttempts.
	Timeout           time.Duration
	PollInterval      time.Duration
	MaxAttempts       int
	OverrideKeyPrefix string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           90 * time.Second,
		PollInterval:      5 * time.Second,
		MaxAttempts:       12,
		OverrideKeyPrefix: "signing:override:",
	}
}
