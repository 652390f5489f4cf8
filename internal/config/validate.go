package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.AssetDir) == "" {
		return errors.New("paths.asset_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateEngines() error {
	if c.Speech.BaseURL == "" {
		return errors.New("speech.base_url must be set")
	}
	if c.Render.BaseURL == "" {
		return errors.New("render.base_url must be set")
	}
	if c.Transcribe.BaseURL == "" {
		return errors.New("transcribe.base_url must be set")
	}
	if c.ScriptLLM.BaseURL == "" {
		return errors.New("script_llm.base_url must be set")
	}
	if c.ScriptLLM.Model == "" {
		return errors.New("script_llm.model must be set")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.DegradedConfidence > 1 {
		return fmt.Errorf("alignment.degraded_confidence must be in (0,1], got %v", c.Alignment.DegradedConfidence)
	}
	if c.Alignment.MismatchPenalty > 1 {
		return fmt.Errorf("alignment.mismatch_penalty must be in (0,1], got %v", c.Alignment.MismatchPenalty)
	}
	if c.Alignment.LowConfidenceThreshold > 1 {
		return fmt.Errorf("alignment.low_confidence_threshold must be in (0,1], got %v", c.Alignment.LowConfidenceThreshold)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
