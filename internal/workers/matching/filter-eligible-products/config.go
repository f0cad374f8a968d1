// internal/workers/matching/filter-eligible-products/config.go
package filtereligibleproducts

import "time"

type Config struct {
	Timeout time.Duration
	// IncludeRejections adds per-product rejection reasons to the output
	// even when the job does not ask for them.
	IncludeRejections bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
