// Package config loads pactctl's environment-variable configuration,
// continuing the teacher's pkg/config.Load() shape (env var with a
// hardcoded default, no flags, no file) for the subset of settings the
// store-backed CLI subcommands need.
package config

import "os"

// Config holds pactctl's runtime configuration.
type Config struct {
	DatabaseURL string
	LogLevel    string
}

// Load loads configuration from environment variables.
func Load() *Config {
	dbURL := os.Getenv("PACT_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://pact@localhost:5432/pact?sslmode=disable"
	}

	logLevel := os.Getenv("PACT_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		DatabaseURL: dbURL,
		LogLevel:    logLevel,
	}
}
