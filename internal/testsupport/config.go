// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"testing"

	"sift/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are zeroed so retry paths run instantly under test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = base
	cfg.Paths.LogDir = base
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.RetryInitialDelay = 0
	cfg.Workflow.RetryMaxDelay = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRetryMaxAttempts overrides the workflow retry attempt cap.
func WithRetryMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.RetryMaxAttempts = attempts
	}
}

// WithStageTimeout bounds each stage attempt to the given number of seconds.
func WithStageTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StageTimeout = seconds
	}
}

// WithTranscriptionDisabled turns the speech-to-text track off.
func WithTranscriptionDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcription.Enabled = false
	}
}
