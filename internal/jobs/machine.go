package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/hub"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Meta carries optional per-update fields for progress reporting. Zero
// values leave the corresponding job fields untouched.
type Meta struct {
	Message     string
	TotalSteps  int
	CurrentStep int
	StepName    string
}

// Machine drives job lifecycle transitions and publishes progress events.
// All state changes are persisted before they are broadcast; broadcasting
// is best effort and never fails a transition.
type Machine struct {
	store  *Store
	events *hub.Hub
	logger *slog.Logger
}

// NewMachine wires a Machine over the given store and event hub.
func NewMachine(store *Store, events *hub.Hub, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Machine{
		store:  store,
		events: events,
		logger: logger.With(logging.String(logging.FieldComponent, "jobs")),
	}
}

// Store exposes the underlying store for read paths that do not transition state.
func (m *Machine) Store() *Store {
	return m.store
}

// Create returns the existing active job for the (subject, type) pair when
// one exists, otherwise inserts a new queued job. The boolean reports
// whether a new job was created.
func (m *Machine) Create(ctx context.Context, subject Subject, jobType Type) (*Job, bool, error) {
	if _, ok := ParseType(string(jobType)); !ok {
		return nil, false, services.Wrap(services.ErrValidation, "jobs", "create",
			fmt.Sprintf("unknown job type %q", jobType), nil)
	}

	existing, err := m.store.ActiveBySubjectAndType(ctx, subject, jobType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		m.logger.Debug("reusing active job",
			logging.Int64(logging.FieldJobID, existing.ID),
			logging.String(logging.FieldJobType, string(jobType)))
		return existing, false, nil
	}

	job, err := m.store.Insert(ctx, subject, jobType)
	if err != nil {
		return nil, false, err
	}
	m.logger.Info("job queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(jobType)),
		logging.String(logging.FieldProjectID, subject.ProjectID))
	return job, true, nil
}

// MarkRunning moves a queued job to running and records the correlation id
// of the execution run. Terminal jobs are left untouched.
func (m *Machine) MarkRunning(ctx context.Context, id int64, runID string) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.RunID = runID
	job.ErrorMessage = ""
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job running",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, runID))
	return job, nil
}

// UpdateProgress clamps and persists a progress percentage along with any
// step metadata, then broadcasts the update. Updates against terminal jobs
// are dropped.
func (m *Machine) UpdateProgress(ctx context.Context, id int64, percent float64, meta Meta) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	job.Progress = ClampProgress(percent)
	if meta.TotalSteps > 0 {
		job.TotalSteps = meta.TotalSteps
	}
	if meta.CurrentStep > 0 {
		job.CurrentStep = meta.CurrentStep
	}
	if meta.StepName != "" {
		job.StepName = meta.StepName
	}
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	m.broadcast(job, hub.KindProgress, meta.Message)
	return job, nil
}

// SetResult persists the result reference mid-run so restarted executions
// can recover intermediate outputs. Terminal jobs are left untouched.
func (m *Machine) SetResult(ctx context.Context, id int64, resultRef string) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	job.ResultRef = resultRef
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkStepCompleted records the durable step cursor after a step finishes,
// so a restarted job resumes at the next step instead of re-running work.
func (m *Machine) MarkStepCompleted(ctx context.Context, id int64, stepName string) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	job.CompletedStep = stepName
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkCompleted finalizes a job at 100% progress with an optional result
// reference. Completing an already-terminal job is a no-op.
func (m *Machine) MarkCompleted(ctx context.Context, id int64, resultRef string) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Progress = 100
	job.ResultRef = resultRef
	job.ErrorMessage = ""
	job.CompletedAt = &now
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job completed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)))
	m.broadcast(job, hub.KindCompleted, "")
	return job, nil
}

// MarkFailed finalizes a job with an error message. Progress is left at its
// last recorded value so clients can see how far execution got. Failing an
// already-terminal job is a no-op.
func (m *Machine) MarkFailed(ctx context.Context, id int64, message string) (*Job, error) {
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &now
	if err := m.store.Update(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Warn("job failed",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String("error", message))
	m.broadcast(job, hub.KindFailed, message)
	return job, nil
}

// Retry requeues a failed job for a fresh run. Returns the refreshed job
// and whether the retry applied.
func (m *Machine) Retry(ctx context.Context, id int64) (*Job, bool, error) {
	applied, err := m.store.RetryFailed(ctx, id)
	if err != nil {
		return nil, false, err
	}
	job, err := m.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return job, applied, nil
}

func (m *Machine) load(ctx context.Context, id int64) (*Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "load",
			fmt.Sprintf("job %d not found", id), nil)
	}
	return job, nil
}

// broadcast publishes the job's state to every subject it is scoped to.
func (m *Machine) broadcast(job *Job, kind, message string) {
	if m.events == nil {
		return
	}
	event := hub.Event{
		Kind:        kind,
		JobID:       job.ID,
		JobType:     string(job.Type),
		Progress:    job.Progress,
		TotalSteps:  job.TotalSteps,
		CurrentStep: job.CurrentStep,
		StepName:    job.StepName,
		Message:     message,
	}
	for _, subject := range []string{job.Subject.ProjectID, job.Subject.SentenceID, job.Subject.OutlineID} {
		if subject == "" {
			continue
		}
		event.SubjectID = subject
		m.events.Broadcast(subject, event)
	}
}
