package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"reelsmith/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StagingDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Insert persists a new job row and returns the stored record.
func (s *Store) Insert(ctx context.Context, subject Subject, jobType Type) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            project_id, sentence_id, outline_id, job_type, status, progress,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(subject.ProjectID),
		nullableString(subject.SentenceID),
		nullableString(subject.OutlineID),
		jobType,
		StatusQueued,
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveBySubjectAndType returns the oldest queued or running job matching
// the subject and type, or nil when no such job exists. Subject matching is
// exact on all three reference fields so that sentence-scoped and
// project-scoped jobs of the same type never collide.
func (s *Store) ActiveBySubjectAndType(ctx context.Context, subject Subject, jobType Type) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE IFNULL(project_id, '') = ? AND IFNULL(sentence_id, '') = ? AND IFNULL(outline_id, '') = ?
           AND job_type = ? AND status IN (?, ?)
         ORDER BY id LIMIT 1`,
		subject.ProjectID,
		subject.SentenceID,
		subject.OutlineID,
		jobType,
		StatusQueued,
		StatusRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active by subject and type: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET project_id = ?, sentence_id = ?, outline_id = ?, job_type = ?, status = ?,
             progress = ?, total_steps = ?, current_step = ?, step_name = ?, completed_step = ?,
             error_message = ?, result_ref = ?, run_correlation_id = ?,
             started_at = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.Subject.ProjectID),
		nullableString(job.Subject.SentenceID),
		nullableString(job.Subject.OutlineID),
		job.Type,
		job.Status,
		job.Progress,
		job.TotalSteps,
		job.CurrentStep,
		nullableString(job.StepName),
		nullableString(job.CompletedStep),
		nullableString(job.ErrorMessage),
		nullableString(job.ResultRef),
		nullableString(job.RunID),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ListByProject returns every job scoped to the project, oldest first.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*Job, error) {
	return s.listProject(ctx, projectID)
}

// ListActiveByProject returns queued and running jobs scoped to the project.
func (s *Store) ListActiveByProject(ctx context.Context, projectID string) ([]*Job, error) {
	return s.listProject(ctx, projectID, StatusQueued, StatusRunning)
}

// ListFailedByProject returns failed jobs scoped to the project.
func (s *Store) ListFailedByProject(ctx context.Context, projectID string) ([]*Job, error) {
	return s.listProject(ctx, projectID, StatusFailed)
}

func (s *Store) listProject(ctx context.Context, projectID string, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list project jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// DeleteByProject removes every job scoped to the project.
func (s *Store) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete project jobs: %w", err)
	}
	return res.RowsAffected()
}

// NextQueuedForTypes returns the oldest queued job matching any of the
// provided types, or nil when the queue is drained.
func (s *Store) NextQueuedForTypes(ctx context.Context, types ...Type) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(types)+1)
	args = append(args, StatusQueued)
	for _, t := range types {
		args = append(args, t)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? AND job_type IN (` +
		makePlaceholders(len(types)) + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// ClaimNextQueued atomically claims the oldest queued job matching any of
// the provided types by flipping it to running. Concurrent workers polling
// the same types never claim the same job. Returns nil when the queue is
// drained.
func (s *Store) ClaimNextQueued(ctx context.Context, types ...Type) (*Job, error) {
	for {
		candidate, err := s.NextQueuedForTypes(ctx, types...)
		if err != nil || candidate == nil {
			return nil, err
		}
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusRunning,
			time.Now().UTC().Format(time.RFC3339Nano),
			candidate.ID,
			StatusQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return s.GetByID(ctx, candidate.ID)
		}
		// Lost the race to another worker; try the next queued job.
	}
}

// ResetStuckRunning returns running jobs to queued, used at daemon startup
// so a crash mid-step resumes from the persisted step cursor.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves a failed job back to queued, clearing the failure and
// the step cursor so execution restarts from the first step.
func (s *Store) RetryFailed(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = 0, current_step = 0, step_name = NULL,
             completed_step = NULL, error_message = NULL, completed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("retry failed job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, project_id, sentence_id, outline_id, job_type, status, progress, total_steps, current_step, step_name, completed_step, error_message, result_ref, run_correlation_id, started_at, completed_at, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		projectID    sql.NullString
		sentenceID   sql.NullString
		outlineID    sql.NullString
		jobTypeStr   string
		statusStr    string
		progress     sql.NullFloat64
		totalSteps   sql.NullInt64
		currentStep  sql.NullInt64
		stepName     sql.NullString
		completedStp sql.NullString
		errorMessage sql.NullString
		resultRef    sql.NullString
		runID        sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&sentenceID,
		&outlineID,
		&jobTypeStr,
		&statusStr,
		&progress,
		&totalSteps,
		&currentStep,
		&stepName,
		&completedStp,
		&errorMessage,
		&resultRef,
		&runID,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID: id,
		Subject: Subject{
			ProjectID:  projectID.String,
			SentenceID: sentenceID.String,
			OutlineID:  outlineID.String,
		},
		Type:          Type(jobTypeStr),
		Status:        Status(statusStr),
		Progress:      progress.Float64,
		TotalSteps:    int(totalSteps.Int64),
		CurrentStep:   int(currentStep.Int64),
		StepName:      stepName.String,
		CompletedStep: completedStp.String,
		ErrorMessage:  errorMessage.String,
		ResultRef:     resultRef.String,
		RunID:         runID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
