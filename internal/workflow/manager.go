// Package workflow coordinates job execution across lanes. Each lane owns
// a set of job types and a fixed worker count; the concurrency ceilings
// live here and nowhere else. The GPU lane runs one worker because the
// render engine accepts a single execution stream; batching inside that
// one stream is how throughput is won.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/notify"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/services"
	"reelsmith/internal/steps"
)

type lane struct {
	name    string
	types   []jobs.Type
	workers int
}

// Manager runs the lane poll loops over the job store.
type Manager struct {
	cfg      *config.Config
	machine  *jobs.Machine
	runner   *steps.Runner
	pipeline *pipeline.Pipeline
	notifier notify.Service
	logger   *slog.Logger

	pollInterval  time.Duration
	retryInterval time.Duration
	lanes         []lane

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager with the standard lane layout.
func NewManager(cfg *config.Config, machine *jobs.Machine, runner *steps.Runner, p *pipeline.Pipeline, notifier notify.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	retryInterval := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}
	scriptWorkers := cfg.Workflow.ScriptWorkers
	if scriptWorkers <= 0 {
		scriptWorkers = 1
	}
	return &Manager{
		cfg:           cfg,
		machine:       machine,
		runner:        runner,
		pipeline:      p,
		notifier:      notifier,
		logger:        logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval:  pollInterval,
		retryInterval: retryInterval,
		lanes: []lane{
			{name: "script", types: []jobs.Type{jobs.TypeScript, jobs.TypeScriptLong}, workers: scriptWorkers},
			{name: "speech", types: []jobs.Type{jobs.TypeAudio, jobs.TypeAudioBatch}, workers: 1},
			{name: "gpu", types: []jobs.Type{jobs.TypeImage, jobs.TypeImageBatch, jobs.TypeVideo, jobs.TypeVideoBatch}, workers: 1},
			{name: "export", types: []jobs.Type{jobs.TypeExport}, workers: 1},
		},
	}
}

// Start requeues jobs stranded in running by a previous crash, then spawns
// the lane workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	reset, err := m.machine.Store().ResetStuckRunning(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		m.logger.Info("requeued jobs from previous run", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, ln := range m.lanes {
		for worker := 0; worker < ln.workers; worker++ {
			m.wg.Add(1)
			go m.runWorker(runCtx, ln, worker)
		}
	}
	m.logger.Info("workflow started", logging.Int("lanes", len(m.lanes)))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to reach a step
// boundary.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the lane workers are active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runWorker(ctx context.Context, ln lane, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(
		logging.String(logging.FieldLane, ln.name),
		logging.Int("worker", worker),
	)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := m.machine.Store().ClaimNextQueued(ctx, ln.types...)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to poll queue", logging.Error(err))
			if !m.sleep(ctx, m.retryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}

		m.processJob(ctx, ln, logger, job)
	}
}

func (m *Manager) processJob(ctx context.Context, ln lane, logger *slog.Logger, job *jobs.Job) {
	laneCtx := services.WithLane(ctx, ln.name)
	logger.Info("job claimed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)))

	list, err := m.pipeline.StepsFor(job)
	if err != nil {
		logger.Error("no step list for job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		_, _ = m.machine.MarkFailed(laneCtx, job.ID, services.Message(err))
		return
	}

	if err := m.runner.Execute(laneCtx, job.ID, list); err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown mid-job: return it to the queue so the cursor resumes
			// on the next start.
			requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, requeueErr := m.machine.Store().ResetStuckRunning(requeueCtx); requeueErr != nil {
				logger.Error("failed to requeue cancelled job", logging.Error(requeueErr))
			}
			return
		}
		logger.Warn("job failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
		return
	}

	if m.notifier != nil {
		subject := job.Subject.ProjectID
		if subject == "" {
			subject = job.Subject.SentenceID
		}
		if notifyErr := m.notifier.NotifyJobCompleted(laneCtx, string(job.Type), subject); notifyErr != nil {
			logger.Debug("completion notification failed", logging.Error(notifyErr))
		}
	}
}

func (m *Manager) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
