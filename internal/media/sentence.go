package media

// SentenceStatus tracks where a sentence sits in its generation lifecycle.
type SentenceStatus string

const (
	SentencePending    SentenceStatus = "pending"
	SentenceQueued     SentenceStatus = "queued"
	SentenceGenerating SentenceStatus = "generating"
	SentenceCompleted  SentenceStatus = "completed"
	SentenceFailed     SentenceStatus = "failed"
)

// Sentence is the unit of narration owned by the surrounding CRUD layer.
// The pipeline reads its generation inputs and writes artifact references,
// timing fields, and dirty flags back through the Library.
type Sentence struct {
	ID        string
	ProjectID string
	SectionID string
	Order     int
	Text      string

	AudioFile        string
	ImageFile        string
	VideoFile        string
	SectionAudioFile string
	AudioStartMs     int64
	AudioEndMs       int64
	DurationMs       int64

	IsAudioDirty bool
	IsImageDirty bool
	IsVideoDirty bool

	ImagePrompt    string
	VideoPrompt    string
	CameraMovement string
	MotionStrength float64

	Status SentenceStatus
}

// WordTiming is a single word's placement within a sentence's audio,
// persisted alongside the sentence for caption highlighting.
type WordTiming struct {
	Text        string  `json:"text"`
	StartMs     int64   `json:"startMs"`
	EndMs       int64   `json:"endMs"`
	Probability float64 `json:"probability"`
}
