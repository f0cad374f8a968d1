// internal/workers/application/submit-application/config.go
package submitapplication

import "time"

type Config struct {
	Timeout time.Duration
	// RejectDuplicates throws DUPLICATE_APPLICATION when the staff backend
	// reports an existing application instead of reusing its id.
	RejectDuplicates bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
