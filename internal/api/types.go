// Package api defines the request and response payloads shared by the
// daemon HTTP server and its clients.
package api

import (
	"time"

	"reelsmith/internal/jobs"
)

// JobView is the wire representation of a job.
type JobView struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	ProjectID    string     `json:"projectId,omitempty"`
	SentenceID   string     `json:"sentenceId,omitempty"`
	OutlineID    string     `json:"outlineId,omitempty"`
	Progress     float64    `json:"progress"`
	TotalSteps   int        `json:"totalSteps,omitempty"`
	CurrentStep  int        `json:"currentStep,omitempty"`
	StepName     string     `json:"stepName,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ResultRef    string     `json:"resultRef,omitempty"`
	RunID        string     `json:"runId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FromJob converts a stored job to its wire representation.
func FromJob(job *jobs.Job) JobView {
	return JobView{
		ID:           job.ID,
		Type:         string(job.Type),
		Status:       string(job.Status),
		ProjectID:    job.Subject.ProjectID,
		SentenceID:   job.Subject.SentenceID,
		OutlineID:    job.Subject.OutlineID,
		Progress:     job.Progress,
		TotalSteps:   job.TotalSteps,
		CurrentStep:  job.CurrentStep,
		StepName:     job.StepName,
		ErrorMessage: job.ErrorMessage,
		ResultRef:    job.ResultRef,
		RunID:        job.RunID,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// FromJobs converts a job list in order.
func FromJobs(list []*jobs.Job) []JobView {
	if len(list) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// CreateJobRequest asks the daemon to enqueue a job. Submitting a request
// whose subject and type already have an active job returns that job
// instead of creating a duplicate.
type CreateJobRequest struct {
	Type       string `json:"type"`
	ProjectID  string `json:"projectId,omitempty"`
	SentenceID string `json:"sentenceId,omitempty"`
	OutlineID  string `json:"outlineId,omitempty"`
}

// CreateJobResponse reports the enqueued or reused job.
type CreateJobResponse struct {
	Job     JobView `json:"job"`
	Created bool    `json:"created"`
}

// JobResponse wraps a single job lookup.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// RetryJobResponse reports the outcome of a retry request.
type RetryJobResponse struct {
	Job     JobView `json:"job"`
	Retried bool    `json:"retried"`
}

// DeleteJobsResponse reports how many jobs a project purge removed.
type DeleteJobsResponse struct {
	Deleted int64 `json:"deleted"`
}

// StatusResponse summarizes daemon runtime state.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	JobCounts     map[string]int `json:"jobCounts"`
	DroppedEvents int64          `json:"droppedEvents"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
