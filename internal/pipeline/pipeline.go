// Package pipeline assembles the step list for each job type. Steps are
// written to be safe to re-invoke: artifact writes are upserts keyed by
// sentence id and job creation is idempotent, so a resumed job never
// duplicates visible effects.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/batch"
	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/services"
	"reelsmith/internal/services/render"
	"reelsmith/internal/services/scriptllm"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/services/transcribe"
	"reelsmith/internal/steps"
)

// Drafter is the script drafting surface the pipeline needs.
type Drafter interface {
	Draft(ctx context.Context, topic, guidance string) (scriptllm.Script, error)
	DraftLong(ctx context.Context, topic, guidance string) (scriptllm.Script, error)
}

// Synthesizer is the text-to-speech surface the pipeline needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (speech.Result, error)
}

// Transcriber is the speech-to-text surface the pipeline needs.
type Transcriber interface {
	Transcribe(ctx context.Context, audioFile string) ([]transcribe.Word, error)
}

// Renderer is the image/video surface the pipeline needs.
type Renderer interface {
	ResolveRequest(input render.RequestInput) (render.Request, error)
}

// Deps bundles everything the step lists close over.
type Deps struct {
	Config     *config.Config
	Library    media.Library
	Script     Drafter
	Speech     Synthesizer
	Render     Renderer
	Transcribe Transcriber
	Batches    *batch.Scheduler
	Logger     *slog.Logger
}

// Pipeline produces step lists for the step runner.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// New wires a pipeline over its collaborators.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		deps:   deps,
		logger: logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// StepsFor returns the ordered step list for the job's type.
func (p *Pipeline) StepsFor(job *jobs.Job) ([]steps.Step, error) {
	switch job.Type {
	case jobs.TypeScript:
		return p.scriptSteps(job, false), nil
	case jobs.TypeScriptLong:
		return p.scriptSteps(job, true), nil
	case jobs.TypeAudio:
		return p.audioSteps(job), nil
	case jobs.TypeAudioBatch:
		return p.audioBatchSteps(job), nil
	case jobs.TypeImage:
		return p.singleRenderSteps(job, render.KindImage), nil
	case jobs.TypeImageBatch:
		return p.renderBatchSteps(job, render.KindImage), nil
	case jobs.TypeVideo:
		return p.singleRenderSteps(job, render.KindVideo), nil
	case jobs.TypeVideoBatch:
		return p.renderBatchSteps(job, render.KindVideo), nil
	case jobs.TypeExport:
		return p.exportSteps(job), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "steps",
			fmt.Sprintf("no step list for job type %q", job.Type), nil)
	}
}

func (p *Pipeline) perItemTimeout(kind render.Kind) time.Duration {
	seconds := p.deps.Config.Batch.ImageItemTimeoutSeconds
	if kind == render.KindVideo {
		seconds = p.deps.Config.Batch.VideoItemTimeoutSeconds
	}
	if seconds <= 0 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}

func artifactForKind(kind render.Kind) media.Artifact {
	if kind == render.KindVideo {
		return media.ArtifactVideo
	}
	return media.ArtifactImage
}

func classForKind(kind render.Kind) batch.Class {
	if kind == render.KindVideo {
		return batch.ClassVideo
	}
	return batch.ClassImage
}
