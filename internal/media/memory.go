package media

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryLibrary is an in-memory Library. It backs the daemon until an
// external sentence CRUD layer is attached, and doubles as the test
// implementation.
type MemoryLibrary struct {
	mu        sync.Mutex
	sentences map[string]*Sentence
	timings   map[string][]WordTiming
}

// NewMemoryLibrary creates an empty library.
func NewMemoryLibrary() *MemoryLibrary {
	return &MemoryLibrary{
		sentences: make(map[string]*Sentence),
		timings:   make(map[string][]WordTiming),
	}
}

// Put stores a copy of the sentence, replacing any existing entry.
func (l *MemoryLibrary) Put(sentence Sentence) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := sentence
	l.sentences[sentence.ID] = &cp
}

// Sentence returns a copy of the stored sentence, or nil when absent.
func (l *MemoryLibrary) Sentence(_ context.Context, id string) (*Sentence, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.sentences[id]
	if !ok {
		return nil, nil
	}
	cp := *stored
	return &cp, nil
}

// SectionSentences returns the section's sentences ordered by Order.
func (l *MemoryLibrary) SectionSentences(_ context.Context, sectionID string) ([]*Sentence, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Sentence
	for _, stored := range l.sentences {
		if stored.SectionID == sectionID {
			cp := *stored
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// DirtySentences returns sentences with the artifact's dirty flag set, or
// all sentences when force is true, ordered by Order.
func (l *MemoryLibrary) DirtySentences(_ context.Context, projectID string, artifact Artifact, force bool) ([]*Sentence, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Sentence
	for _, stored := range l.sentences {
		if stored.ProjectID != projectID {
			continue
		}
		if !force && !stored.dirtyFlag(artifact) {
			continue
		}
		cp := *stored
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// SaveArtifact stores the file reference and clears the artifact's flag.
func (l *MemoryLibrary) SaveArtifact(_ context.Context, sentenceID string, artifact Artifact, file string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.sentences[sentenceID]
	if !ok {
		return fmt.Errorf("sentence %s not found", sentenceID)
	}
	switch artifact {
	case ArtifactAudio:
		stored.AudioFile = file
		stored.IsAudioDirty = false
	case ArtifactImage:
		stored.ImageFile = file
		stored.IsImageDirty = false
	case ArtifactVideo:
		stored.VideoFile = file
		stored.IsVideoDirty = false
	default:
		return fmt.Errorf("unknown artifact %q", artifact)
	}
	return nil
}

// SaveTiming persists section-audio placement for the sentence.
func (l *MemoryLibrary) SaveTiming(_ context.Context, sentenceID, sectionAudioFile string, startMs, endMs int64, _ float64, words []WordTiming) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.sentences[sentenceID]
	if !ok {
		return fmt.Errorf("sentence %s not found", sentenceID)
	}
	stored.SectionAudioFile = sectionAudioFile
	stored.AudioStartMs = startMs
	stored.AudioEndMs = endMs
	stored.DurationMs = endMs - startMs
	l.timings[sentenceID] = append([]WordTiming(nil), words...)
	return nil
}

// Timings returns the word timings recorded for a sentence.
func (l *MemoryLibrary) Timings(sentenceID string) []WordTiming {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]WordTiming(nil), l.timings[sentenceID]...)
}

// MarkDirty sets the given artifact flags on the sentence.
func (l *MemoryLibrary) MarkDirty(_ context.Context, sentenceID string, artifacts []Artifact) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.sentences[sentenceID]
	if !ok {
		return fmt.Errorf("sentence %s not found", sentenceID)
	}
	for _, artifact := range artifacts {
		switch artifact {
		case ArtifactAudio:
			stored.IsAudioDirty = true
		case ArtifactImage:
			stored.IsImageDirty = true
		case ArtifactVideo:
			stored.IsVideoDirty = true
		}
	}
	return nil
}

// SetStatus updates the sentence's generation status.
func (l *MemoryLibrary) SetStatus(_ context.Context, sentenceID string, status SentenceStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.sentences[sentenceID]
	if !ok {
		return fmt.Errorf("sentence %s not found", sentenceID)
	}
	stored.Status = status
	return nil
}

func (s *Sentence) dirtyFlag(artifact Artifact) bool {
	switch artifact {
	case ArtifactAudio:
		return s.IsAudioDirty
	case ArtifactImage:
		return s.IsImageDirty
	case ArtifactVideo:
		return s.IsVideoDirty
	}
	return false
}
