package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateAnnotation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		return nil
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set when storage.backend is \"s3\"")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected \"local\" or \"s3\")", c.Storage.Backend)
	}
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.SampleIntervalSeconds <= 0 {
		return errors.New("pipeline.sample_interval_seconds must be positive")
	}
	if c.Pipeline.ProxyWidth <= 0 || c.Pipeline.ProxyHeight <= 0 {
		return errors.New("pipeline.proxy_width and pipeline.proxy_height must be positive")
	}
	if c.Pipeline.DiffThresholdPct <= 0 || c.Pipeline.DiffThresholdPct > 100 {
		return errors.New("pipeline.diff_threshold_pct must be in (0, 100]")
	}
	if c.Pipeline.PixelDeltaThreshold <= 0 || c.Pipeline.PixelDeltaThreshold > 255 {
		return errors.New("pipeline.pixel_delta_threshold must be in (0, 255]")
	}
	if c.Pipeline.PromotionCooldown < 0 {
		return errors.New("pipeline.promotion_cooldown_seconds must not be negative")
	}
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold >= 1 {
		return errors.New("pipeline.similarity_threshold must be in (0, 1)")
	}
	if c.Pipeline.SceneScoreThreshold <= 0 || c.Pipeline.SceneScoreThreshold >= 1 {
		return errors.New("pipeline.scene_score_threshold must be in (0, 1)")
	}
	if c.Pipeline.MinCoverageSeconds <= 0 {
		return errors.New("pipeline.min_coverage_seconds must be positive")
	}
	if c.Pipeline.BatchSize <= 0 {
		return errors.New("pipeline.batch_size must be positive")
	}
	if c.Pipeline.BatchParallelism <= 0 {
		return errors.New("pipeline.batch_parallelism must be positive")
	}
	return nil
}

func (c *Config) validateAnnotation() error {
	if c.Annotation.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sift/config.toml"
		}
		return fmt.Errorf("annotation.api_key is required. Set SIFT_ANNOTATION_API_KEY env var or edit %s (create with 'sift config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.RetryMaxAttempts <= 0 {
		return errors.New("workflow.retry_max_attempts must be positive")
	}
	if c.Workflow.RetryInitialDelay <= 0 || c.Workflow.RetryMaxDelay < c.Workflow.RetryInitialDelay {
		return errors.New("workflow.retry delays must be positive and retry_max_delay >= retry_initial_delay")
	}
	if c.Workflow.LedgerTTLDays <= 0 {
		return errors.New("workflow.ledger_ttl_days must be positive")
	}
	// A paused job must be resumable while its ledger entries are still live.
	// Presigned references expire independently, so the ledger TTL bounds the
	// maximum supported pause duration.
	if c.Workflow.LedgerTTLDays*24*60 < c.Storage.PresignTTLMinutes {
		return errors.New("workflow.ledger_ttl_days must cover storage.presign_ttl_minutes")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
