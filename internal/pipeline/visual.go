package pipeline

import (
	"context"
	"fmt"

	"reelsmith/internal/batch"
	"reelsmith/internal/invalidate"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/services"
	"reelsmith/internal/services/render"
	"reelsmith/internal/steps"
)

// singleRenderSteps generates one image or video for one sentence through
// the batch scheduler. A single item still goes through the scheduler so
// the GPU single-flight guarantee holds against concurrent batch jobs.
func (p *Pipeline) singleRenderSteps(job *jobs.Job, kind render.Kind) []steps.Step {
	generate := steps.Step{
		Name: "render-" + string(kind),
		Run: func(ctx context.Context, exec *steps.Exec) error {
			sentence, err := p.requireSentence(ctx, job)
			if err != nil {
				return err
			}
			request, err := p.resolveFor(sentence, kind)
			if err != nil {
				return err
			}
			items := []batch.Item{{ID: sentence.ID, Payload: request}}
			results, err := p.deps.Batches.Run(ctx, classForKind(kind), items, p.perItemTimeout(kind),
				nil,
				func(completed, total int) {
					exec.ReportProgress(ctx, float64(completed)/float64(total)*100, "")
				})
			if err != nil {
				return err
			}
			result := results[0]
			if result.Err != nil {
				return result.Err
			}
			if err := p.deps.Library.SaveArtifact(ctx, sentence.ID, artifactForKind(kind), result.OutputRef); err != nil {
				return err
			}
			exec.SetResult(result.OutputRef)
			return nil
		},
	}
	return []steps.Step{generate}
}

// renderBatchSteps generates images or videos for every dirty sentence in
// the project as one batch submission. Per-item results are persisted the
// moment each item completes, so a deadline or failure later in the batch
// never loses finished work.
func (p *Pipeline) renderBatchSteps(job *jobs.Job, kind render.Kind) []steps.Step {
	generate := steps.Step{
		Name: "render-" + string(kind) + "-batch",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			if job.Subject.ProjectID == "" {
				return services.Wrap(services.ErrValidation, "pipeline", "render-batch",
					fmt.Sprintf("%s job needs a project subject", job.Type), nil)
			}
			targets, err := invalidate.Targets(ctx, p.deps.Library, job.Subject.ProjectID, artifactForKind(kind), false)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				exec.ReportProgress(ctx, 100, "nothing to generate")
				return nil
			}

			items := make([]batch.Item, 0, len(targets))
			byID := make(map[string]*media.Sentence, len(targets))
			for _, sentence := range targets {
				request, resolveErr := p.resolveFor(sentence, kind)
				if resolveErr != nil {
					// Unresolvable sentences are skipped, not fatal: the rest
					// of the project still generates.
					p.logger.Warn("skipping sentence with unresolvable request",
						logging.String("sentence_id", sentence.ID),
						logging.Error(resolveErr))
					continue
				}
				items = append(items, batch.Item{ID: sentence.ID, Payload: request})
				byID[sentence.ID] = sentence
			}
			if len(items) == 0 {
				return services.Wrap(services.ErrValidation, "pipeline", "render-batch",
					"no sentence produced a usable generation request", nil)
			}

			results, err := p.deps.Batches.Run(ctx, classForKind(kind), items, p.perItemTimeout(kind),
				func(item batch.Item, outputRef string) {
					if saveErr := p.deps.Library.SaveArtifact(ctx, item.ID, artifactForKind(kind), outputRef); saveErr != nil {
						p.logger.Error("failed to persist batch artifact",
							logging.String("sentence_id", item.ID),
							logging.Error(saveErr))
					}
				},
				func(completed, total int) {
					exec.ReportProgress(ctx, float64(completed)/float64(total)*100,
						fmt.Sprintf("%d/%d %s items done", completed, total, kind))
				})
			if err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					p.logger.Warn("batch item failed",
						logging.String("sentence_id", result.Item.ID),
						logging.Error(result.Err))
					if sentence := byID[result.Item.ID]; sentence != nil {
						_ = p.deps.Library.SetStatus(ctx, sentence.ID, media.SentenceFailed)
					}
				}
			}
			if failed == len(results) {
				return services.Wrap(services.ErrExecution, "pipeline", "render-batch",
					fmt.Sprintf("all %d items failed", failed), nil)
			}
			exec.SetResult(fmt.Sprintf("%d/%d items generated", len(results)-failed, len(results)))
			return nil
		},
	}
	return []steps.Step{generate}
}

// resolveFor builds the single resolved render request for a sentence.
func (p *Pipeline) resolveFor(sentence *media.Sentence, kind render.Kind) (render.Request, error) {
	input := render.RequestInput{Kind: kind}
	switch kind {
	case render.KindImage:
		input.Prompt = sentence.ImagePrompt
	case render.KindVideo:
		input.Prompt = sentence.VideoPrompt
		if input.Prompt == "" {
			input.Prompt = sentence.ImagePrompt
		}
		input.SourceImage = sentence.ImageFile
		input.CameraMovement = sentence.CameraMovement
		input.MotionStrength = sentence.MotionStrength
	}
	if input.Prompt == "" {
		input.Prompt = sentence.Text
	}
	return p.deps.Render.ResolveRequest(input)
}
