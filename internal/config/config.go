// Package config provides centralized configuration loaded from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the ingestion CLI needs.
type Config struct {
	// FootyStats API
	APIKey          string
	APIBaseURL      string
	RequestsPerHour int

	// Store: SQLite file path or Postgres DSN. The --db flag overrides it.
	DatabaseDSN string

	Debug bool
}

// Load reads configuration from environment variables. The API key is the
// one fatal precondition: without it no task can run.
func Load() (*Config, error) {
	apiKey := os.Getenv("FOOTYSTATS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("FOOTYSTATS_API_KEY must be set")
	}

	return &Config{
		APIKey:          apiKey,
		APIBaseURL:      envOr("FOOTYSTATS_BASE_URL", "https://api.football-data-api.com"),
		RequestsPerHour: envInt("FOOTYSTATS_REQUESTS_PER_HOUR", 1800),
		DatabaseDSN:     envOr("FOOTYDATA_DB", "footystats.db"),
		Debug:           envBool("DEBUG", false),
	}, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}
