package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/jobs"
	"reelsmith/internal/media"
	"reelsmith/internal/services"
	"reelsmith/internal/steps"
)

// exportManifest is the handoff document for the external assembly step:
// every sentence's artifacts and timing in narration order.
type exportManifest struct {
	ProjectID string             `json:"projectId"`
	Sentences []manifestSentence `json:"sentences"`
}

type manifestSentence struct {
	SentenceID       string  `json:"sentenceId"`
	Order            int     `json:"order"`
	Text             string  `json:"text"`
	AudioFile        string  `json:"audioFile"`
	ImageFile        string  `json:"imageFile,omitempty"`
	VideoFile        string  `json:"videoFile,omitempty"`
	SectionAudioFile string  `json:"sectionAudioFile,omitempty"`
	AudioStartMs     int64   `json:"audioStartMs"`
	AudioEndMs       int64   `json:"audioEndMs"`
	CameraMovement   string  `json:"cameraMovement,omitempty"`
	MotionStrength   float64 `json:"motionStrength,omitempty"`
}

// exportSteps validates that every sentence carries its artifacts and
// writes the assembly manifest. The final video render itself is the
// external assembler's job; the manifest is this pipeline's last output.
func (p *Pipeline) exportSteps(job *jobs.Job) []steps.Step {
	var sentences []*media.Sentence

	collect := steps.Step{
		Name: "collect-artifacts",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			if job.Subject.ProjectID == "" {
				return services.Wrap(services.ErrValidation, "pipeline", "export",
					"export job needs a project subject", nil)
			}
			all, err := p.deps.Library.DirtySentences(ctx, job.Subject.ProjectID, media.ArtifactAudio, true)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				return services.Wrap(services.ErrNotFound, "pipeline", "export",
					fmt.Sprintf("project %s has no sentences", job.Subject.ProjectID), nil)
			}
			var missing []string
			for _, sentence := range all {
				if sentence.AudioFile == "" && sentence.SectionAudioFile == "" {
					missing = append(missing, sentence.ID)
				}
			}
			if len(missing) > 0 {
				return services.Wrap(services.ErrValidation, "pipeline", "export",
					fmt.Sprintf("%d sentences missing narration audio: %v", len(missing), missing), nil)
			}
			sentences = all
			return nil
		},
	}

	writeManifest := steps.Step{
		Name: "write-manifest",
		Run: func(ctx context.Context, exec *steps.Exec) error {
			if len(sentences) == 0 {
				reloaded, err := p.deps.Library.DirtySentences(ctx, job.Subject.ProjectID, media.ArtifactAudio, true)
				if err != nil {
					return err
				}
				sentences = reloaded
			}
			manifest := exportManifest{ProjectID: job.Subject.ProjectID}
			for _, sentence := range sentences {
				manifest.Sentences = append(manifest.Sentences, manifestSentence{
					SentenceID:       sentence.ID,
					Order:            sentence.Order,
					Text:             sentence.Text,
					AudioFile:        sentence.AudioFile,
					ImageFile:        sentence.ImageFile,
					VideoFile:        sentence.VideoFile,
					SectionAudioFile: sentence.SectionAudioFile,
					AudioStartMs:     sentence.AudioStartMs,
					AudioEndMs:       sentence.AudioEndMs,
					CameraMovement:   sentence.CameraMovement,
					MotionStrength:   sentence.MotionStrength,
				})
			}

			path := filepath.Join(p.deps.Config.Paths.AssetDir, "exports",
				fmt.Sprintf("%s-manifest.json", job.Subject.ProjectID))
			encoded, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return services.Wrap(services.ErrExecution, "pipeline", "export", "encode manifest", err)
			}
			if err := fileutil.WriteFileAtomic(path, encoded, 0o644); err != nil {
				return services.Wrap(services.ErrExecution, "pipeline", "export", "write manifest", err)
			}
			exec.SetResult(path)
			return nil
		},
	}

	return []steps.Step{collect, writeManifest}
}
