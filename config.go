package steptrack

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the Runtime.
type Config struct {
	// TableName is the store table (or key namespace) that holds the
	// operational records.
	TableName string

	// LockTTL is the default idempotency-lock lifetime. Locks are never
	// renewed; long work should be decomposed into shorter idempotent
	// steps rather than holding a lock across it.
	LockTTL time.Duration

	// LogLevel is the minimum structured-log level.
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName: "steptrack",
		LockTTL:   5 * time.Minute,
		LogLevel:  "INFO",
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset:
//
//	STEPTRACK_TABLE_NAME — store table for operational persistence
//	STEPTRACK_LOCK_TTL   — default lock lifetime in seconds
//	LOG_LEVEL            — structured logging level (default INFO)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("STEPTRACK_TABLE_NAME"); v != "" {
		cfg.TableName = v
	}
	if v := os.Getenv("STEPTRACK_LOCK_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.LockTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}
