package config

const (
	defaultWorkDir               = "~/.local/share/sift/work"
	defaultLogDir                = "~/.local/share/sift/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultStorageBackend        = "local"
	defaultPresignTTLMinutes     = 1440 // 24h
	defaultSampleInterval        = 1.0
	defaultProxyWidth            = 640
	defaultProxyHeight           = 360
	defaultDiffThresholdPct      = 5.0
	defaultPixelDeltaThreshold   = 24
	defaultPromotionCooldown     = 0.5
	defaultSimilarityThreshold   = 0.96
	defaultSceneScoreThreshold   = 0.4
	defaultMinCoverageSeconds    = 30.0
	defaultBatchSize             = 10
	defaultBatchParallelism      = 4
	defaultAnnotationBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultAnnotationModel       = "google/gemini-3-flash-preview"
	defaultAnnotationTimeout     = 120
	defaultOverloadRetryAttempts = 6
	defaultOverloadRetryDelaySec = 300
	defaultTranscriptionBinary   = "whisper-cli"
	defaultTranscriptionModel    = "base.en"
	defaultTranscriptionTimeout  = 1800
	defaultQueuePollInterval     = 5
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
	defaultStageTimeout          = 3600
	defaultRetryMaxAttempts      = 5
	defaultRetryInitialDelay     = 1
	defaultRetryMaxDelay         = 60
	defaultLedgerTTLDays         = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Backend:           defaultStorageBackend,
			PresignTTLMinutes: defaultPresignTTLMinutes,
		},
		Pipeline: Pipeline{
			SampleIntervalSeconds: defaultSampleInterval,
			ProxyWidth:            defaultProxyWidth,
			ProxyHeight:           defaultProxyHeight,
			DiffThresholdPct:      defaultDiffThresholdPct,
			PixelDeltaThreshold:   defaultPixelDeltaThreshold,
			PromotionCooldown:     defaultPromotionCooldown,
			SimilarityThreshold:   defaultSimilarityThreshold,
			SceneScoreThreshold:   defaultSceneScoreThreshold,
			MinCoverageSeconds:    defaultMinCoverageSeconds,
			BatchSize:             defaultBatchSize,
			BatchParallelism:      defaultBatchParallelism,
		},
		Annotation: Annotation{
			BaseURL:               defaultAnnotationBaseURL,
			Model:                 defaultAnnotationModel,
			TimeoutSeconds:        defaultAnnotationTimeout,
			OverloadRetryAttempts: defaultOverloadRetryAttempts,
			OverloadRetryDelaySec: defaultOverloadRetryDelaySec,
		},
		Transcription: Transcription{
			Enabled:        true,
			Binary:         defaultTranscriptionBinary,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			StageTimeout:       defaultStageTimeout,
			RetryMaxAttempts:   defaultRetryMaxAttempts,
			RetryInitialDelay:  defaultRetryInitialDelay,
			RetryMaxDelay:      defaultRetryMaxDelay,
			LedgerTTLDays:      defaultLedgerTTLDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
