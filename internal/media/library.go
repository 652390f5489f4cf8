package media

import "context"

// Library is the seam to the external sentence store. The orchestration
// core never performs sentence CRUD itself; it reads generation inputs and
// writes artifact outcomes through this interface. Every write is an
// upsert keyed by sentence id so step re-execution is safe.
type Library interface {
	// Sentence returns the sentence by id, or nil when it does not exist.
	Sentence(ctx context.Context, id string) (*Sentence, error)

	// SectionSentences returns the section's sentences in narration order.
	SectionSentences(ctx context.Context, sectionID string) ([]*Sentence, error)

	// DirtySentences returns the project's sentences whose named artifact
	// flag is set. When force is true every sentence is returned regardless
	// of dirty state.
	DirtySentences(ctx context.Context, projectID string, artifact Artifact, force bool) ([]*Sentence, error)

	// SaveArtifact records a successful generation: stores the file
	// reference and clears exactly that artifact's dirty flag.
	SaveArtifact(ctx context.Context, sentenceID string, artifact Artifact, file string) error

	// SaveTiming persists section-audio placement for a sentence.
	SaveTiming(ctx context.Context, sentenceID, sectionAudioFile string, startMs, endMs int64, confidence float64, words []WordTiming) error

	// MarkDirty sets the given artifact flags on a sentence, typically in
	// response to an upstream field change.
	MarkDirty(ctx context.Context, sentenceID string, artifacts []Artifact) error

	// SetStatus updates the sentence's generation status.
	SetStatus(ctx context.Context, sentenceID string, status SentenceStatus) error
}

// Artifact names a derived output a sentence can carry.
type Artifact string

const (
	ArtifactAudio Artifact = "audio"
	ArtifactImage Artifact = "image"
	ArtifactVideo Artifact = "video"
)
