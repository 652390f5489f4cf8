package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngines()
	c.normalizeTunables()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	expand := func(field *string, label string) error {
		if strings.TrimSpace(*field) == "" {
			return nil
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return fmt.Errorf("expand %s: %w", label, err)
		}
		*field = expanded
		return nil
	}
	if err := expand(&c.Paths.StagingDir, "staging_dir"); err != nil {
		return err
	}
	if err := expand(&c.Paths.AssetDir, "asset_dir"); err != nil {
		return err
	}
	if err := expand(&c.Paths.LogDir, "log_dir"); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeEngines() {
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	c.Render.BaseURL = strings.TrimRight(strings.TrimSpace(c.Render.BaseURL), "/")
	c.Transcribe.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcribe.BaseURL), "/")
	c.ScriptLLM.BaseURL = strings.TrimSpace(c.ScriptLLM.BaseURL)
	c.ScriptLLM.APIKey = strings.TrimSpace(c.ScriptLLM.APIKey)
	c.ScriptLLM.Model = strings.TrimSpace(c.ScriptLLM.Model)
	c.Speech.Voice = strings.TrimSpace(c.Speech.Voice)
	c.Transcribe.Language = strings.TrimSpace(c.Transcribe.Language)
}

func (c *Config) normalizeTunables() {
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = defaultJobsMaxAttempts
	}
	if c.Jobs.RetryDelaySeconds <= 0 {
		c.Jobs.RetryDelaySeconds = defaultJobsRetryDelaySeconds
	}
	if c.Batch.ImageItemTimeoutSeconds <= 0 {
		c.Batch.ImageItemTimeoutSeconds = defaultBatchImageItemTimeout
	}
	if c.Batch.VideoItemTimeoutSeconds <= 0 {
		c.Batch.VideoItemTimeoutSeconds = defaultBatchVideoItemTimeout
	}
	if c.Batch.PollIntervalSeconds <= 0 {
		c.Batch.PollIntervalSeconds = defaultBatchPollInterval
	}
	if c.Alignment.DegradedConfidence <= 0 {
		c.Alignment.DegradedConfidence = defaultDegradedConfidence
	}
	if c.Alignment.MismatchPenalty <= 0 {
		c.Alignment.MismatchPenalty = defaultMismatchPenalty
	}
	if c.Alignment.LowConfidenceThreshold <= 0 {
		c.Alignment.LowConfidenceThreshold = defaultLowConfidence
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.ScriptWorkers <= 0 {
		c.Workflow.ScriptWorkers = defaultScriptWorkers
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
