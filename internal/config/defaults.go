package config

const (
	defaultStagingDir            = "~/.local/share/reelsmith/staging"
	defaultAssetDir              = "~/.local/share/reelsmith/assets"
	defaultLogDir                = "~/.local/share/reelsmith/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultSpeechBaseURL         = "http://127.0.0.1:8004"
	defaultSpeechVoice           = "narrator"
	defaultSpeechTimeoutSeconds  = 300
	defaultRenderBaseURL         = "http://127.0.0.1:8188"
	defaultRenderImageModel      = "sdxl-base"
	defaultRenderVideoModel      = "svd-xt"
	defaultRenderSubmitTimeout   = 60
	defaultRenderPollInterval    = 2
	defaultTranscribeBaseURL     = "http://127.0.0.1:8005"
	defaultTranscribeLanguage    = "en"
	defaultTranscribeTimeout     = 600
	defaultScriptLLMBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultScriptLLMModel        = "anthropic/claude-sonnet-4"
	defaultScriptLLMTimeout      = 120
	defaultJobsMaxAttempts       = 3
	defaultJobsRetryDelaySeconds = 5
	defaultBatchImageItemTimeout = 300
	defaultBatchVideoItemTimeout = 900
	defaultBatchPollInterval     = 2
	defaultDegradedConfidence    = 0.3
	defaultMismatchPenalty       = 0.5
	defaultLowConfidence         = 0.5
	defaultQueuePollInterval     = 2
	defaultErrorRetryInterval    = 5
	defaultScriptWorkers         = 3
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			AssetDir:   defaultAssetDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			Voice:          defaultSpeechVoice,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Render: Render{
			BaseURL:             defaultRenderBaseURL,
			ImageModel:          defaultRenderImageModel,
			VideoModel:          defaultRenderVideoModel,
			SubmitTimeoutSecs:   defaultRenderSubmitTimeout,
			PollIntervalSeconds: defaultRenderPollInterval,
		},
		Transcribe: Transcribe{
			BaseURL:        defaultTranscribeBaseURL,
			Language:       defaultTranscribeLanguage,
			TimeoutSeconds: defaultTranscribeTimeout,
		},
		ScriptLLM: ScriptLLM{
			BaseURL:        defaultScriptLLMBaseURL,
			Model:          defaultScriptLLMModel,
			TimeoutSeconds: defaultScriptLLMTimeout,
		},
		Jobs: Jobs{
			MaxAttempts:       defaultJobsMaxAttempts,
			RetryDelaySeconds: defaultJobsRetryDelaySeconds,
		},
		Batch: Batch{
			ImageItemTimeoutSeconds: defaultBatchImageItemTimeout,
			VideoItemTimeoutSeconds: defaultBatchVideoItemTimeout,
			PollIntervalSeconds:     defaultBatchPollInterval,
		},
		Alignment: Alignment{
			DegradedConfidence:     defaultDegradedConfidence,
			MismatchPenalty:        defaultMismatchPenalty,
			LowConfidenceThreshold: defaultLowConfidence,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			ScriptWorkers:      defaultScriptWorkers,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completions:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
