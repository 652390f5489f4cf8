// Package invalidate computes which derived artifacts become stale when a
// sentence's generation inputs change. The dependency table is fixed:
// text feeds everything, prompts feed their own artifact and downstream
// video, and the motion fields feed video only.
package invalidate

import (
	"context"

	"reelsmith/internal/media"
)

// Field names the sentence inputs the dependency table tracks.
type Field string

const (
	FieldText           Field = "text"
	FieldImagePrompt    Field = "imagePrompt"
	FieldVideoPrompt    Field = "videoPrompt"
	FieldCameraMovement Field = "cameraMovement"
	FieldMotionStrength Field = "motionStrength"
)

// dependents maps each tracked field to the artifacts derived from it.
var dependents = map[Field][]media.Artifact{
	FieldText:           {media.ArtifactAudio, media.ArtifactImage, media.ArtifactVideo},
	FieldImagePrompt:    {media.ArtifactImage, media.ArtifactVideo},
	FieldVideoPrompt:    {media.ArtifactVideo},
	FieldCameraMovement: {media.ArtifactVideo},
	FieldMotionStrength: {media.ArtifactVideo},
}

// DirtySet is the set of artifacts that must be flagged stale.
type DirtySet map[media.Artifact]bool

// Artifacts returns the set members in stable audio, image, video order.
func (d DirtySet) Artifacts() []media.Artifact {
	var out []media.Artifact
	for _, artifact := range []media.Artifact{media.ArtifactAudio, media.ArtifactImage, media.ArtifactVideo} {
		if d[artifact] {
			out = append(out, artifact)
		}
	}
	return out
}

// Recompute returns the dirty flags that must become true given the set of
// changed fields. Only tracked fields contribute; values are irrelevant
// beyond the fact that they changed. Flags never move true to false here;
// clearing happens only when a generation succeeds for that artifact.
func Recompute(changedFields []Field) DirtySet {
	dirty := make(DirtySet)
	for _, field := range changedFields {
		for _, artifact := range dependents[field] {
			dirty[artifact] = true
		}
	}
	return dirty
}

// ChangedFields diffs two versions of a sentence and reports which tracked
// fields differ.
func ChangedFields(before, after *media.Sentence) []Field {
	if before == nil || after == nil {
		return nil
	}
	var changed []Field
	if before.Text != after.Text {
		changed = append(changed, FieldText)
	}
	if before.ImagePrompt != after.ImagePrompt {
		changed = append(changed, FieldImagePrompt)
	}
	if before.VideoPrompt != after.VideoPrompt {
		changed = append(changed, FieldVideoPrompt)
	}
	if before.CameraMovement != after.CameraMovement {
		changed = append(changed, FieldCameraMovement)
	}
	if before.MotionStrength != after.MotionStrength {
		changed = append(changed, FieldMotionStrength)
	}
	return changed
}

// Apply recomputes and persists the dirty flags implied by a field change.
// It only ever sets flags; a sentence whose change touches no tracked field
// is left untouched.
func Apply(ctx context.Context, library media.Library, sentenceID string, changedFields []Field) error {
	artifacts := Recompute(changedFields).Artifacts()
	if len(artifacts) == 0 {
		return nil
	}
	return library.MarkDirty(ctx, sentenceID, artifacts)
}

// Targets selects the project's sentences eligible for bulk generation of
// an artifact: dirty ones by default, all of them when force is set.
func Targets(ctx context.Context, library media.Library, projectID string, artifact media.Artifact, force bool) ([]*media.Sentence, error) {
	return library.DirtySentences(ctx, projectID, artifact, force)
}
