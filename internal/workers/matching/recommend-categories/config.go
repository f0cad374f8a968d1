// internal/workers/matching/recommend-categories/config.go
package recommendcategories

import "time"

type Config struct {
	Timeout time.Duration
	// Limit caps the number of categories returned; zero returns all.
	Limit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
