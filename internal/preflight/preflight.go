// Package preflight verifies that the generation engines are reachable
// before the daemon starts accepting work. Failures are reported, not
// fatal: an engine that is down only blocks the lanes that need it.
package preflight

import (
	"context"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
	"reelsmith/internal/services/render"
	"reelsmith/internal/services/scriptllm"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/services/transcribe"
)

const checkTimeout = 10 * time.Second

// Result reports one engine's availability.
type Result struct {
	Name      string
	Available bool
	Detail    string
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckEngines probes every configured generation engine. Engines without
// a configured endpoint are reported as unavailable with a config detail.
func CheckEngines(ctx context.Context, cfg *config.Config) []Result {
	results := make([]Result, 0, 4)

	results = append(results, checkOne(ctx, "script-llm", cfg.ScriptLLM.APIKey != "",
		"api key not configured", scriptllm.NewClient(scriptllm.Config{
			APIKey:  cfg.ScriptLLM.APIKey,
			BaseURL: cfg.ScriptLLM.BaseURL,
			Model:   cfg.ScriptLLM.Model,
		}, scriptllm.WithRetryMaxAttempts(1))))

	results = append(results, checkOne(ctx, "speech", strings.TrimSpace(cfg.Speech.BaseURL) != "",
		"base url not configured", speech.NewClient(speech.Config{BaseURL: cfg.Speech.BaseURL})))

	results = append(results, checkOne(ctx, "render", strings.TrimSpace(cfg.Render.BaseURL) != "",
		"base url not configured", render.NewClient(render.Config{
			BaseURL:    cfg.Render.BaseURL,
			ImageModel: cfg.Render.ImageModel,
			VideoModel: cfg.Render.VideoModel,
		})))

	results = append(results, checkOne(ctx, "transcribe", strings.TrimSpace(cfg.Transcribe.BaseURL) != "",
		"base url not configured", transcribe.NewClient(transcribe.Config{BaseURL: cfg.Transcribe.BaseURL})))

	return results
}

func checkOne(ctx context.Context, name string, configured bool, missingDetail string, checker healthChecker) Result {
	if !configured {
		return Result{Name: name, Detail: missingDetail}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: services.Message(err)}
	}
	return Result{Name: name, Available: true, Detail: "reachable"}
}
