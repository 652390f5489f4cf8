package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	AssetDir   string `toml:"asset_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Speech contains configuration for the text-to-speech engine.
type Speech struct {
	BaseURL        string `toml:"base_url"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Render contains configuration for the diffusion image/video engine.
type Render struct {
	BaseURL             string `toml:"base_url"`
	ImageModel          string `toml:"image_model"`
	VideoModel          string `toml:"video_model"`
	DefaultStyle        string `toml:"default_style"`
	SubmitTimeoutSecs   int    `toml:"submit_timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Transcribe contains configuration for the transcription engine.
type Transcribe struct {
	BaseURL        string `toml:"base_url"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ScriptLLM contains configuration for the script drafting model.
type ScriptLLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Jobs contains retry policy settings for durable step execution.
type Jobs struct {
	MaxAttempts       int `toml:"max_attempts"`
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
}

// Batch contains configuration for the GPU batch scheduler.
type Batch struct {
	ImageItemTimeoutSeconds int `toml:"image_item_timeout_seconds"`
	VideoItemTimeoutSeconds int `toml:"video_item_timeout_seconds"`
	PollIntervalSeconds     int `toml:"poll_interval_seconds"`
}

// Alignment contains tunables for sentence timing alignment.
type Alignment struct {
	// DegradedConfidence is assigned when no transcription is available
	// and spans are produced by even time division.
	DegradedConfidence float64 `toml:"degraded_confidence"`
	// MismatchPenalty scales confidence for sentences whose token counts
	// could not be matched exactly against the recognized words.
	MismatchPenalty float64 `toml:"mismatch_penalty"`
	// LowConfidenceThreshold is the advisory floor reported by validation.
	LowConfidenceThreshold float64 `toml:"low_confidence_threshold"`
}

// Workflow contains daemon timing and lane sizing.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	ScriptWorkers      int `toml:"script_workers"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completions    bool   `toml:"completions"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Speech/Render/Transcribe/ScriptLLM: generation engine endpoints
//   - Jobs: step retry policy
//   - Batch: GPU batch scheduler timeouts
//   - Alignment: sentence timing alignment tunables
//   - Workflow: daemon polling intervals and lane sizing
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Speech        Speech        `toml:"speech"`
	Render        Render        `toml:"render"`
	Transcribe    Transcribe    `toml:"transcribe"`
	ScriptLLM     ScriptLLM     `toml:"script_llm"`
	Jobs          Jobs          `toml:"jobs"`
	Batch         Batch         `toml:"batch"`
	Alignment     Alignment     `toml:"alignment"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.AssetDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}
