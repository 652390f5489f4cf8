package pipeline

import (
	"context"
	"fmt"
	"strings"

	"reelsmith/internal/align"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
	"reelsmith/internal/services"
	"reelsmith/internal/services/transcribe"
	"reelsmith/internal/steps"
)

// audioSteps synthesizes narration for a single sentence.
func (p *Pipeline) audioSteps(job *jobs.Job) []steps.Step {
	synthesize := steps.Step{
		Name: "synthesize-audio",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			sentence, err := p.requireSentence(ctx, job)
			if err != nil {
				return err
			}
			if err := p.deps.Library.SetStatus(ctx, sentence.ID, media.SentenceGenerating); err != nil {
				return err
			}
			result, err := p.deps.Speech.Synthesize(ctx, sentence.Text)
			if err != nil {
				_ = p.deps.Library.SetStatus(ctx, sentence.ID, media.SentenceFailed)
				return err
			}
			if err := p.deps.Library.SaveArtifact(ctx, sentence.ID, media.ArtifactAudio, result.AudioFile); err != nil {
				return err
			}
			if err := p.deps.Library.SaveTiming(ctx, sentence.ID, "", 0, result.DurationMs, 1, nil); err != nil {
				return err
			}
			if err := p.deps.Library.SetStatus(ctx, sentence.ID, media.SentenceCompleted); err != nil {
				return err
			}
			exec.SetResult(result.AudioFile)
			return nil
		},
	}
	return []steps.Step{synthesize}
}

// audioBatchSteps narrates a whole section as one continuous audio file,
// transcribes it, and aligns the word timestamps back onto sentences.
// Section audio keeps prosody natural across sentence boundaries at the
// cost of needing the alignment pass.
func (p *Pipeline) audioBatchSteps(job *jobs.Job) []steps.Step {
	var (
		sentences  []*media.Sentence
		audioFile  string
		durationMs int64
		words      []transcribe.Word
	)

	synthesize := steps.Step{
		Name: "synthesize-section",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			var err error
			sentences, err = p.requireSectionSentences(ctx, job)
			if err != nil {
				return err
			}
			texts := make([]string, 0, len(sentences))
			for _, sentence := range sentences {
				texts = append(texts, strings.TrimSpace(sentence.Text))
			}
			exec.ReportProgress(ctx, 10, fmt.Sprintf("narrating %d sentences", len(sentences)))
			result, err := p.deps.Speech.Synthesize(ctx, strings.Join(texts, " "))
			if err != nil {
				return err
			}
			audioFile = result.AudioFile
			durationMs = result.DurationMs
			// Persist immediately: the transcribe and align steps recover
			// the section audio path from the result ref after a restart.
			return exec.SaveResult(ctx, audioFile)
		},
	}

	transcribeStep := steps.Step{
		Name: "transcribe-section",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			// Resuming past synthesize-section without in-memory state means
			// the process restarted; re-derive the inputs.
			if err := p.reloadSectionState(ctx, job, &sentences, &audioFile, exec); err != nil {
				return err
			}
			exec.ReportProgress(ctx, 50, "transcribing section audio")
			recognized, err := p.deps.Transcribe.Transcribe(ctx, audioFile)
			if err != nil {
				// Transcription loss degrades timing quality, it does not
				// block narration. The align step falls back to an even split.
				p.logger.Warn("transcription unavailable, timing will be degraded",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.Error(err))
				words = nil
				return nil
			}
			words = recognized
			return nil
		},
	}

	alignStep := steps.Step{
		Name: "align-sentences",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			if err := p.reloadSectionState(ctx, job, &sentences, &audioFile, exec); err != nil {
				return err
			}
			inputs := make([]align.SentenceInput, 0, len(sentences))
			for _, sentence := range sentences {
				inputs = append(inputs, align.SentenceInput{
					SentenceID: sentence.ID,
					Text:       sentence.Text,
					Order:      sentence.Order,
				})
			}
			opts := align.Options{
				MismatchPenalty:        p.deps.Config.Alignment.MismatchPenalty,
				DegradedConfidence:     p.deps.Config.Alignment.DegradedConfidence,
				LowConfidenceThreshold: p.deps.Config.Alignment.LowConfidenceThreshold,
			}

			var spans []align.Span
			if len(words) == 0 {
				if durationMs == 0 {
					return services.Wrap(services.ErrExecution, "pipeline", "align-sentences",
						"no transcript and no known duration, re-run from synthesis", nil)
				}
				spans = align.DegradedSpans(inputs, durationMs, opts)
			} else {
				alignWords := make([]align.Word, len(words))
				for i, word := range words {
					alignWords[i] = align.Word{
						Text:        word.Text,
						StartMs:     word.StartMs,
						EndMs:       word.EndMs,
						Probability: word.Probability,
					}
				}
				spans = align.Align(inputs, alignWords, opts)
			}

			for _, advisory := range align.Validate(spans, opts) {
				p.logger.Warn("alignment advisory",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.String("sentence_id", advisory.SentenceID),
					logging.String("kind", string(advisory.Kind)),
					logging.String("detail", advisory.Detail))
			}

			for i, span := range spans {
				timings := make([]media.WordTiming, len(span.Words))
				for j, word := range span.Words {
					timings[j] = media.WordTiming{
						Text:        word.Text,
						StartMs:     word.StartMs,
						EndMs:       word.EndMs,
						Probability: word.Probability,
					}
				}
				if err := p.deps.Library.SaveTiming(ctx, span.SentenceID, audioFile, span.StartMs, span.EndMs, span.Confidence, timings); err != nil {
					return err
				}
				if err := p.deps.Library.SaveArtifact(ctx, span.SentenceID, media.ArtifactAudio, audioFile); err != nil {
					return err
				}
				exec.ReportProgress(ctx, 80+float64(i+1)/float64(len(spans))*20,
					fmt.Sprintf("aligned %d/%d sentences", i+1, len(spans)))
			}
			return nil
		},
	}

	return []steps.Step{synthesize, transcribeStep, alignStep}
}

func (p *Pipeline) requireSentence(ctx context.Context, job *jobs.Job) (*media.Sentence, error) {
	if job.Subject.SentenceID == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "sentence",
			fmt.Sprintf("%s job needs a sentence subject", job.Type), nil)
	}
	sentence, err := p.deps.Library.Sentence(ctx, job.Subject.SentenceID)
	if err != nil {
		return nil, err
	}
	if sentence == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "sentence",
			fmt.Sprintf("sentence %s not found", job.Subject.SentenceID), nil)
	}
	return sentence, nil
}

func (p *Pipeline) requireSectionSentences(ctx context.Context, job *jobs.Job) ([]*media.Sentence, error) {
	if job.Subject.OutlineID == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "section",
			fmt.Sprintf("%s job needs a section subject", job.Type), nil)
	}
	sentences, err := p.deps.Library.SectionSentences(ctx, job.Subject.OutlineID)
	if err != nil {
		return nil, err
	}
	if len(sentences) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "section",
			fmt.Sprintf("section %s has no sentences", job.Subject.OutlineID), nil)
	}
	return sentences, nil
}

// reloadSectionState repopulates step-local state after a resume. The
// section audio path is recovered from the job's persisted result ref.
func (p *Pipeline) reloadSectionState(ctx context.Context, job *jobs.Job, sentences *[]*media.Sentence, audioFile *string, exec *steps.Exec) error {
	if len(*sentences) == 0 {
		reloaded, err := p.requireSectionSentences(ctx, job)
		if err != nil {
			return err
		}
		*sentences = reloaded
	}
	if *audioFile == "" {
		*audioFile = exec.Job.ResultRef
	}
	if *audioFile == "" {
		return services.Wrap(services.ErrExecution, "pipeline", "resume",
			"section audio missing after resume, re-run from synthesis", nil)
	}
	return nil
}
