package config

import (
	"fmt"

	"github.com/corvid-labs/capsule/internal/env"
)

// WorkerConfig holds all configuration for the worker binary.
type WorkerConfig struct {
	Database DatabaseConfig

	Concurrency           int
	PollIntervalMs        int
	VisibilityTimeoutSecs int
	BaseBackoffSecs       int
}

// Validate checks the worker-specific fields. The nested Database config
// validates itself during LoadWorkerConfig, before these fields are set.
func (c *WorkerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL_MS must be positive, got %d", c.PollIntervalMs)
	}
	if c.VisibilityTimeoutSecs <= 0 {
		return fmt.Errorf("WORKER_VISIBILITY_TIMEOUT_SECS must be positive, got %d", c.VisibilityTimeoutSecs)
	}
	if c.BaseBackoffSecs <= 0 {
		return fmt.Errorf("WORKER_BASE_BACKOFF_SECS must be positive, got %d", c.BaseBackoffSecs)
	}
	return nil
}

// LoadWorkerConfig loads and validates worker configuration from environment.
// The nested Database config uses the struct-tag loader (it has its own
// Validate); the worker's own scalar settings are read directly with GetEnv,
// with defaults supplied in code for whatever is unset.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		Concurrency:           4,
		PollIntervalMs:        1000,
		VisibilityTimeoutSecs: 300,
		BaseBackoffSecs:       30,
	}

	if err := env.Load(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	if v, ok := GetEnv[int]("WORKER_CONCURRENCY"); ok {
		cfg.Concurrency = v
	}
	if v, ok := GetEnv[int]("WORKER_POLL_INTERVAL_MS"); ok {
		cfg.PollIntervalMs = v
	}
	if v, ok := GetEnv[int]("WORKER_VISIBILITY_TIMEOUT_SECS"); ok {
		cfg.VisibilityTimeoutSecs = v
	}
	if v, ok := GetEnv[int]("WORKER_BASE_BACKOFF_SECS"); ok {
		cfg.BaseBackoffSecs = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}

	return cfg, nil
}
