// Package daemonrun wires the daemon's dependency graph and runs it until
// the process receives a termination signal. Both the reelsmithd binary and
// the CLI's foreground daemon command go through Run.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"reelsmith/internal/batch"
	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/hub"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/notify"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/preflight"
	"reelsmith/internal/services/render"
	"reelsmith/internal/services/scriptllm"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/services/transcribe"
	"reelsmith/internal/steps"
	"reelsmith/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run builds the daemon from config and blocks until the context is done
// or a SIGINT/SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}

	events := hub.New(logger)
	machine := jobs.NewMachine(store, events, logger)
	notifier := notify.NewService(cfg)

	scriptClient := scriptllm.NewClient(scriptllm.Config{
		APIKey:         cfg.ScriptLLM.APIKey,
		BaseURL:        cfg.ScriptLLM.BaseURL,
		Model:          cfg.ScriptLLM.Model,
		TimeoutSeconds: cfg.ScriptLLM.TimeoutSeconds,
	})
	speechClient := speech.NewClient(speech.Config{
		BaseURL:        cfg.Speech.BaseURL,
		Voice:          cfg.Speech.Voice,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	})
	transcribeClient := transcribe.NewClient(transcribe.Config{
		BaseURL:        cfg.Transcribe.BaseURL,
		Language:       cfg.Transcribe.Language,
		TimeoutSeconds: cfg.Transcribe.TimeoutSeconds,
	})
	renderClient := render.NewClient(render.Config{
		BaseURL:           cfg.Render.BaseURL,
		ImageModel:        cfg.Render.ImageModel,
		VideoModel:        cfg.Render.VideoModel,
		DefaultStyle:      cfg.Render.DefaultStyle,
		SubmitTimeoutSecs: cfg.Render.SubmitTimeoutSecs,
	})

	pollInterval := time.Duration(cfg.Batch.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	scheduler := batch.NewScheduler(render.NewBatchEngine(renderClient), pollInterval, logger)

	// Sentence CRUD lives with an external collaborator; until it is
	// attached the daemon serves from the in-memory library.
	library := media.NewMemoryLibrary()

	p := pipeline.New(pipeline.Deps{
		Config:     cfg,
		Library:    library,
		Script:     scriptClient,
		Speech:     speechClient,
		Render:     renderClient,
		Transcribe: transcribeClient,
		Batches:    scheduler,
		Logger:     logger,
	})

	retryDelay := time.Duration(cfg.Jobs.RetryDelaySeconds) * time.Second
	runner := steps.NewRunner(machine, notifier, cfg.Jobs.MaxAttempts, retryDelay, logger)
	manager := workflow.NewManager(cfg, machine, runner, p, notifier, logger)

	for _, result := range preflight.CheckEngines(signalCtx, cfg) {
		if result.Available {
			logger.Info("engine check", logging.String("engine", result.Name), logging.String("detail", result.Detail))
		} else {
			logger.Warn("engine unavailable", logging.String("engine", result.Name), logging.String("detail", result.Detail))
		}
	}

	d, err := daemon.New(cfg, store, machine, events, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	logger.Info("reelsmith daemon running",
		logging.String("api", d.APIAddr()),
		logging.String("database", store.Path()))

	<-signalCtx.Done()
	logger.Info("shutting down")
	d.Stop()
	return nil
}
