// Package steps executes a job as an ordered list of named steps with a
// durable cursor. The cursor records the last completed step so a process
// restart resumes at the next step instead of re-running finished work;
// every step must therefore be safe to re-invoke.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/notify"
	"reelsmith/internal/services"
)

// Step is one named unit of job work.
type Step struct {
	Name string
	Run  func(ctx context.Context, exec *Exec) error
}

// Exec carries per-execution state into step functions.
type Exec struct {
	Job     *jobs.Job
	machine *jobs.Machine
	result  string
}

// SetResult records the job's result reference, persisted on completion.
func (e *Exec) SetResult(ref string) {
	e.result = ref
}

// SaveResult persists the result reference immediately so later steps can
// recover it after a process restart.
func (e *Exec) SaveResult(ctx context.Context, ref string) error {
	e.result = ref
	job, err := e.machine.SetResult(ctx, e.Job.ID, ref)
	if err != nil {
		return err
	}
	e.Job = job
	return nil
}

// ReportProgress persists and broadcasts a mid-step progress update.
// Failures are swallowed; progress reporting never fails a step.
func (e *Exec) ReportProgress(ctx context.Context, percent float64, message string) {
	_, _ = e.machine.UpdateProgress(ctx, e.Job.ID, percent, jobs.Meta{Message: message})
}

// Runner drives step lists against the job machine with per-step retries.
type Runner struct {
	machine     *jobs.Machine
	notifier    notify.Service
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	sleeper     func(context.Context, time.Duration) error
}

// NewRunner wires a Runner. maxAttempts bounds retries per step for
// retryable failures; non-retryable failures fail the job immediately.
func NewRunner(machine *jobs.Machine, notifier notify.Service, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		machine:     machine,
		notifier:    notifier,
		logger:      logger.With(logging.String(logging.FieldComponent, "steps")),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleeper:     sleepCtx,
	}
}

// Execute runs the job through the step list. A job whose cursor names a
// step resumes after it. The job is marked completed when the last step
// finishes, or failed when a step exhausts its retry budget. Cancellation
// is checked at step boundaries only; a cancelled job stays queued with
// its cursor intact so it resumes cleanly on the next pass.
func (r *Runner) Execute(ctx context.Context, jobID int64, list []Step) error {
	if len(list) == 0 {
		return fmt.Errorf("job %d: empty step list", jobID)
	}

	runID := uuid.NewString()
	job, err := r.machine.MarkRunning(ctx, jobID, runID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	runCtx := services.WithJobID(ctx, job.ID)
	runCtx = services.WithRunID(runCtx, runID)
	logger := r.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String(logging.FieldCorrelationID, runID),
	)

	exec := &Exec{Job: job, machine: r.machine, result: job.ResultRef}
	start := resumeIndex(job.CompletedStep, list)
	if start > 0 {
		logger.Info("resuming from step cursor",
			logging.String(logging.FieldStep, list[start-1].Name),
			logging.Int("skipped_steps", start))
	}

	total := len(list)
	for i := start; i < total; i++ {
		if err := runCtx.Err(); err != nil {
			// Cancelled between steps: leave the job running state to the
			// caller, the cursor already points at the right resume spot.
			logger.Info("execution cancelled at step boundary",
				logging.String(logging.FieldStep, list[i].Name))
			return err
		}

		step := list[i]
		stepCtx := services.WithStep(runCtx, step.Name)
		percent := jobs.ClampProgress(float64(i) / float64(total) * 100)
		if _, err := r.machine.UpdateProgress(stepCtx, job.ID, percent, jobs.Meta{
			TotalSteps:  total,
			CurrentStep: i + 1,
			StepName:    step.Name,
			Message:     step.Name + " started",
		}); err != nil {
			return err
		}

		if err := r.runStepWithRetry(stepCtx, logger, exec, step); err != nil {
			message := services.Message(err)
			if _, failErr := r.machine.MarkFailed(stepCtx, job.ID, message); failErr != nil {
				logger.Error("failed to persist job failure", logging.Error(failErr))
			}
			if r.notifier != nil {
				label := fmt.Sprintf("%s (job #%d)", step.Name, job.ID)
				if notifyErr := r.notifier.NotifyError(stepCtx, err, label); notifyErr != nil {
					logger.Debug("error notification failed", logging.Error(notifyErr))
				}
			}
			return err
		}

		if _, err := r.machine.MarkStepCompleted(stepCtx, job.ID, step.Name); err != nil {
			return err
		}
		logger.Debug("step completed", logging.String(logging.FieldStep, step.Name))
	}

	if _, err := r.machine.MarkCompleted(runCtx, job.ID, exec.result); err != nil {
		return err
	}
	logger.Info("job completed", logging.String("result_ref", exec.result))
	return nil
}

func (r *Runner) runStepWithRetry(ctx context.Context, logger *slog.Logger, exec *Exec, step Step) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = step.Run(ctx, exec)
		if lastErr == nil {
			return nil
		}
		if !services.Retryable(lastErr) || attempt == r.maxAttempts {
			return lastErr
		}
		logger.Warn("step failed, retrying",
			logging.String(logging.FieldStep, step.Name),
			logging.Int("attempt", attempt),
			logging.Error(lastErr))
		if err := r.sleeper(ctx, r.retryDelay); err != nil {
			return err
		}
	}
	return lastErr
}

// resumeIndex returns the index of the first step to run given the cursor.
// An unknown cursor restarts from the beginning; the steps themselves are
// idempotent so a stale cursor is safe.
func resumeIndex(completedStep string, list []Step) int {
	if completedStep == "" {
		return 0
	}
	for i, step := range list {
		if step.Name == completedStep {
			return i + 1
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
