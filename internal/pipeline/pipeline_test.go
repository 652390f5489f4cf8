package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"reelsmith/internal/batch"
	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
	"reelsmith/internal/media"
	"reelsmith/internal/services"
	"reelsmith/internal/services/render"
	"reelsmith/internal/services/scriptllm"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/services/transcribe"
	"reelsmith/internal/steps"
	"reelsmith/internal/testsupport"
)

type fakeDrafter struct {
	script scriptllm.Script
	err    error
}

func (f *fakeDrafter) Draft(context.Context, string, string) (scriptllm.Script, error) {
	return f.script, f.err
}

func (f *fakeDrafter) DraftLong(context.Context, string, string) (scriptllm.Script, error) {
	return f.script, f.err
}

type fakeSpeech struct {
	mu       sync.Mutex
	requests []string
	result   speech.Result
	err      error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) (speech.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, text)
	return f.result, f.err
}

type fakeTranscriber struct {
	words []transcribe.Word
	err   error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) ([]transcribe.Word, error) {
	return f.words, f.err
}

// fakeRenderEngine resolves every submission on the first poll.
type fakeRenderEngine struct {
	mu     sync.Mutex
	failID string
}

func (e *fakeRenderEngine) Submit(_ context.Context, _ batch.Class, item batch.Item) (string, error) {
	if _, ok := item.Payload.(render.Request); !ok {
		return "", services.Wrap(services.ErrValidation, "render", "submit", "bad payload", nil)
	}
	return "tok-" + item.ID, nil
}

func (e *fakeRenderEngine) Poll(_ context.Context, _ batch.Class, token string) (batch.PollStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := strings.TrimPrefix(token, "tok-")
	if id == e.failID {
		return batch.PollStatus{Done: true, Failure: "render crashed"}, nil
	}
	return batch.PollStatus{Done: true, OutputRef: "/out/" + id + ".png"}, nil
}

type harness struct {
	pipeline *Pipeline
	runner   *steps.Runner
	machine  *jobs.Machine
	library  *testsupport.MemoryLibrary
	speech   *fakeSpeech
	words    *fakeTranscriber
	cfg      *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	machine := jobs.NewMachine(store, nil, nil)
	library := testsupport.NewMemoryLibrary()
	speechFake := &fakeSpeech{result: speech.Result{AudioFile: "/out/audio.wav", DurationMs: 9000}}
	transcriberFake := &fakeTranscriber{}
	renderClient := render.NewClient(render.Config{
		BaseURL: "http://localhost:0", ImageModel: "sdxl", VideoModel: "svd", DefaultStyle: "cinematic",
	})
	scheduler := batch.NewScheduler(&fakeRenderEngine{}, time.Millisecond, nil)

	p := New(Deps{
		Config:     cfg,
		Library:    library,
		Script:     &fakeDrafter{script: scriptllm.Script{Title: "T", Sections: []scriptllm.Section{{Heading: "H", Sentences: []string{"One.", "Two."}}}}},
		Speech:     speechFake,
		Render:     renderClient,
		Transcribe: transcriberFake,
		Batches:    scheduler,
	})
	return &harness{
		pipeline: p,
		runner:   steps.NewRunner(machine, nil, 1, 0, nil),
		machine:  machine,
		library:  library,
		speech:   speechFake,
		words:    transcriberFake,
		cfg:      cfg,
	}
}

func (h *harness) run(t *testing.T, subject jobs.Subject, jobType jobs.Type) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	job, _, err := h.machine.Create(ctx, subject, jobType)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	list, err := h.pipeline.StepsFor(job)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	if err := h.runner.Execute(ctx, job.ID, list); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	final, err := h.machine.Store().GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return final
}

func TestScriptJobWritesDraftFile(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, jobs.Subject{ProjectID: "p1", OutlineID: "volcanoes"}, jobs.TypeScript)

	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	raw, err := os.ReadFile(job.ResultRef)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	var script scriptllm.Script
	if err := json.Unmarshal(raw, &script); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if script.SentenceCount() != 2 {
		t.Fatalf("draft sentences = %d", script.SentenceCount())
	}
}

func TestAudioJobSavesArtifactAndClearsFlag(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", Text: "Hello there.", IsAudioDirty: true})

	job := h.run(t, jobs.Subject{ProjectID: "p1", SentenceID: "s1"}, jobs.TypeAudio)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}

	sentence, _ := h.library.Sentence(context.Background(), "s1")
	if sentence.AudioFile != "/out/audio.wav" {
		t.Fatalf("audio file = %q", sentence.AudioFile)
	}
	if sentence.IsAudioDirty {
		t.Fatal("successful generation must clear the audio dirty flag")
	}
	if sentence.Status != media.SentenceCompleted {
		t.Fatalf("sentence status = %s", sentence.Status)
	}
}

func TestAudioBatchAlignsSectionSentences(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", SectionID: "sec1", Order: 1, Text: "Hello there."})
	h.library.Put(media.Sentence{ID: "s2", ProjectID: "p1", SectionID: "sec1", Order: 2, Text: "How are you?"})
	h.words.words = []transcribe.Word{
		{Text: "hello", StartMs: 0, EndMs: 400, Probability: 0.9},
		{Text: "there", StartMs: 400, EndMs: 800, Probability: 0.9},
		{Text: "how", StartMs: 800, EndMs: 1100, Probability: 0.9},
		{Text: "are", StartMs: 1100, EndMs: 1300, Probability: 0.9},
		{Text: "you", StartMs: 1300, EndMs: 1600, Probability: 0.9},
	}

	job := h.run(t, jobs.Subject{ProjectID: "p1", OutlineID: "sec1"}, jobs.TypeAudioBatch)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}

	first, _ := h.library.Sentence(context.Background(), "s1")
	second, _ := h.library.Sentence(context.Background(), "s2")
	if first.AudioStartMs != 0 || first.AudioEndMs != 800 {
		t.Fatalf("s1 span = [%d, %d]", first.AudioStartMs, first.AudioEndMs)
	}
	if second.AudioStartMs != 800 || second.AudioEndMs != 1600 {
		t.Fatalf("s2 span = [%d, %d]", second.AudioStartMs, second.AudioEndMs)
	}
	if first.SectionAudioFile != "/out/audio.wav" {
		t.Fatalf("section audio = %q", first.SectionAudioFile)
	}
	if timings := h.library.Timings("s1"); len(timings) != 2 {
		t.Fatalf("s1 word timings = %d, want 2", len(timings))
	}

	// The section was narrated as one request joining both sentences.
	if len(h.speech.requests) != 1 || h.speech.requests[0] != "Hello there. How are you?" {
		t.Fatalf("speech requests = %q", h.speech.requests)
	}
}

func TestAudioBatchDegradesWithoutTranscript(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", SectionID: "sec1", Order: 1, Text: "One."})
	h.library.Put(media.Sentence{ID: "s2", ProjectID: "p1", SectionID: "sec1", Order: 2, Text: "Two."})
	h.library.Put(media.Sentence{ID: "s3", ProjectID: "p1", SectionID: "sec1", Order: 3, Text: "Three."})
	h.words.err = services.Wrap(services.ErrUnavailable, "transcribe", "transcribe", "engine offline", nil)

	job := h.run(t, jobs.Subject{ProjectID: "p1", OutlineID: "sec1"}, jobs.TypeAudioBatch)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}

	for i, id := range []string{"s1", "s2", "s3"} {
		sentence, _ := h.library.Sentence(context.Background(), id)
		if width := sentence.AudioEndMs - sentence.AudioStartMs; width != 3000 {
			t.Fatalf("%s width = %d, want even 3000ms split", id, width)
		}
		if want := int64(i) * 3000; sentence.AudioStartMs != want {
			t.Fatalf("%s start = %d, want %d", id, sentence.AudioStartMs, want)
		}
		if timings := h.library.Timings(id); len(timings) != 0 {
			t.Fatalf("%s has %d word timings, want none in degraded mode", id, len(timings))
		}
	}
}

func TestImageBatchGeneratesDirtySentencesOnly(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", Order: 1, Text: "One.", ImagePrompt: "a fox", IsImageDirty: true})
	h.library.Put(media.Sentence{ID: "s2", ProjectID: "p1", Order: 2, Text: "Two.", ImagePrompt: "a hen", IsImageDirty: false})
	h.library.Put(media.Sentence{ID: "s3", ProjectID: "p1", Order: 3, Text: "Three.", ImagePrompt: "a dog", IsImageDirty: true})

	job := h.run(t, jobs.Subject{ProjectID: "p1"}, jobs.TypeImageBatch)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}

	ctx := context.Background()
	s1, _ := h.library.Sentence(ctx, "s1")
	s2, _ := h.library.Sentence(ctx, "s2")
	s3, _ := h.library.Sentence(ctx, "s3")
	if s1.ImageFile != "/out/s1.png" || s3.ImageFile != "/out/s3.png" {
		t.Fatalf("dirty sentences not generated: %q %q", s1.ImageFile, s3.ImageFile)
	}
	if s2.ImageFile != "" {
		t.Fatalf("clean sentence generated anyway: %q", s2.ImageFile)
	}
	if s1.IsImageDirty || s3.IsImageDirty {
		t.Fatal("generation must clear the image dirty flags")
	}
}

func TestVideoJobUsesMotionFields(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{
		ID: "s1", ProjectID: "p1", Text: "One.",
		ImageFile: "/out/s1.png", VideoPrompt: "fox running",
		CameraMovement: "pan-left", MotionStrength: 0.7, IsVideoDirty: true,
	})

	job := h.run(t, jobs.Subject{ProjectID: "p1", SentenceID: "s1"}, jobs.TypeVideo)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	sentence, _ := h.library.Sentence(context.Background(), "s1")
	if sentence.VideoFile == "" {
		t.Fatal("video artifact not saved")
	}
	if sentence.IsVideoDirty {
		t.Fatal("video dirty flag not cleared")
	}
}

func TestExportWritesManifest(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", Order: 1, Text: "One.", AudioFile: "/out/s1.wav", ImageFile: "/out/s1.png"})
	h.library.Put(media.Sentence{ID: "s2", ProjectID: "p1", Order: 2, Text: "Two.", SectionAudioFile: "/out/sec.wav", AudioStartMs: 0, AudioEndMs: 1200})

	job := h.run(t, jobs.Subject{ProjectID: "p1"}, jobs.TypeExport)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}

	raw, err := os.ReadFile(job.ResultRef)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest exportManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.ProjectID != "p1" || len(manifest.Sentences) != 2 {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestExportFailsOnMissingNarration(t *testing.T) {
	h := newHarness(t)
	h.library.Put(media.Sentence{ID: "s1", ProjectID: "p1", Order: 1, Text: "One."})
	ctx := context.Background()

	job, _, err := h.machine.Create(ctx, jobs.Subject{ProjectID: "p1"}, jobs.TypeExport)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	list, err := h.pipeline.StepsFor(job)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	execErr := h.runner.Execute(ctx, job.ID, list)
	if !errors.Is(execErr, services.ErrValidation) {
		t.Fatalf("err = %v, want validation failure", execErr)
	}
	final, _ := h.machine.Store().GetByID(ctx, job.ID)
	if final.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
}

func TestStepsForRejectsUnknownType(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.StepsFor(&jobs.Job{Type: jobs.Type("bogus")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestStepNamesAreStable(t *testing.T) {
	h := newHarness(t)
	job := &jobs.Job{Type: jobs.TypeAudioBatch, Subject: jobs.Subject{OutlineID: "sec1"}}
	list, err := h.pipeline.StepsFor(job)
	if err != nil {
		t.Fatalf("StepsFor: %v", err)
	}
	var names []string
	for _, step := range list {
		names = append(names, step.Name)
	}
	want := fmt.Sprintf("%v", []string{"synthesize-section", "transcribe-section", "align-sentences"})
	if got := fmt.Sprintf("%v", names); got != want {
		t.Fatalf("step names = %s, want %s", got, want)
	}
}
