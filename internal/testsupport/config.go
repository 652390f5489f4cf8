package testsupport

import (
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.AssetDir = filepath.Join(base, "assets")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.ScriptLLM.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithScriptWorkers overrides the script lane worker count.
func WithScriptWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.ScriptWorkers = workers
	}
}

// WithEngineURL points one of the engine base URLs at a test server.
func WithEngineURL(engine, url string) ConfigOption {
	return func(cfg *config.Config) {
		switch engine {
		case "speech":
			cfg.Speech.BaseURL = url
		case "render":
			cfg.Render.BaseURL = url
		case "transcribe":
			cfg.Transcribe.BaseURL = url
		case "scriptllm":
			cfg.ScriptLLM.BaseURL = url
		}
	}
}
