package jobs

import (
	"strings"
	"time"
)

// Type enumerates the fixed set of generation job kinds.
type Type string

const (
	TypeScript     Type = "script"
	TypeScriptLong Type = "script-long"
	TypeAudio      Type = "audio"
	TypeAudioBatch Type = "audio-batch"
	TypeImage      Type = "image"
	TypeImageBatch Type = "image-batch"
	TypeVideo      Type = "video"
	TypeVideoBatch Type = "video-batch"
	TypeExport     Type = "export"
)

var allTypes = []Type{
	TypeScript,
	TypeScriptLong,
	TypeAudio,
	TypeAudioBatch,
	TypeImage,
	TypeImageBatch,
	TypeVideo,
	TypeVideoBatch,
	TypeExport,
}

var typeSet = func() map[Type]struct{} {
	set := make(map[Type]struct{}, len(allTypes))
	for _, t := range allTypes {
		set[t] = struct{}{}
	}
	return set
}()

// AllTypes returns the ordered list of known job types.
func AllTypes() []Type {
	cp := make([]Type, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := typeSet[normalized]
	return normalized, ok
}

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Subject identifies the entity a job is scoped to. A job may be
// project-scoped, sentence-scoped, outline-scoped, or entirely unscoped
// for ad-hoc runs. Zero value means unscoped.
type Subject struct {
	ProjectID  string
	SentenceID string
	OutlineID  string
}

// IsZero reports whether no subject reference is set.
func (s Subject) IsZero() bool {
	return s.ProjectID == "" && s.SentenceID == "" && s.OutlineID == ""
}

// Job represents a generation job persisted in SQLite.
type Job struct {
	ID            int64
	Subject       Subject
	Type          Type
	Status        Status
	Progress      float64
	TotalSteps    int
	CurrentStep   int
	StepName      string
	CompletedStep string // durable cursor: name of the last completed step
	ErrorMessage  string
	ResultRef     string
	RunID         string // correlation id of the external execution run
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsActive reports whether the job still occupies its (subject, type) slot.
func (j *Job) IsActive() bool {
	return j.Status == StatusQueued || j.Status == StatusRunning
}

// ClampProgress bounds a raw percentage to the persistable [0,100] range.
func ClampProgress(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
