package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := (&cfg).Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", resolved)
	}
	if cfg.Workflow.ScriptWorkers != 3 {
		t.Fatalf("expected default script_workers=3, got %d", cfg.Workflow.ScriptWorkers)
	}
	if cfg.Alignment.DegradedConfidence != 0.3 {
		t.Fatalf("expected default degraded_confidence=0.3, got %v", cfg.Alignment.DegradedConfidence)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
asset_dir = "` + filepath.Join(dir, "assets") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[render]
base_url = "http://gpu-box:8188/"

[jobs]
max_attempts = -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if strings.HasSuffix(cfg.Render.BaseURL, "/") {
		t.Fatalf("trailing slash should be trimmed, got %q", cfg.Render.BaseURL)
	}
	if cfg.Jobs.MaxAttempts != 3 {
		t.Fatalf("non-positive max_attempts should fall back to default, got %d", cfg.Jobs.MaxAttempts)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := (&cfg).Validate(); err == nil {
		t.Fatal("expected validation error for logging.format=xml")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.AssetDir = filepath.Join(dir, "assets")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, sub := range []string{"staging", "assets", "logs"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
	}
}
