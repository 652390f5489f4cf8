package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelsmith/internal/hub"
	"reelsmith/internal/jobs"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

func newMachine(t *testing.T) (*jobs.Machine, *hub.Hub) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	events := hub.New(nil)
	t.Cleanup(events.Close)
	return jobs.NewMachine(store, events, nil), events
}

func TestCreateIsIdempotentWhileActive(t *testing.T) {
	machine, _ := newMachine(t)
	ctx := context.Background()
	subject := jobs.Subject{ProjectID: "p", SentenceID: "s1"}

	job, created, err := machine.Create(ctx, subject, jobs.TypeAudio)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created {
		t.Fatal("first create should insert a job")
	}

	again, created, err := machine.Create(ctx, subject, jobs.TypeAudio)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created {
		t.Fatal("second create should reuse the active job")
	}
	if again.ID != job.ID {
		t.Fatalf("reused id = %d, want %d", again.ID, job.ID)
	}

	// A different type for the same subject gets its own job.
	other, created, err := machine.Create(ctx, subject, jobs.TypeImage)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created || other.ID == job.ID {
		t.Fatalf("image job should be distinct, got %+v created=%v", other, created)
	}

	// Once the job settles, a new one may be created for the same pair.
	if _, err := machine.MarkCompleted(ctx, job.ID, "audio.wav"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	fresh, created, err := machine.Create(ctx, subject, jobs.TypeAudio)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created || fresh.ID == job.ID {
		t.Fatalf("expected a fresh job after completion, got %+v created=%v", fresh, created)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	machine, _ := newMachine(t)

	_, _, err := machine.Create(context.Background(), jobs.Subject{ProjectID: "p"}, jobs.Type("bogus"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestProgressClamping(t *testing.T) {
	machine, _ := newMachine(t)
	ctx := context.Background()

	job, _, err := machine.Create(ctx, jobs.Subject{ProjectID: "p"}, jobs.TypeScript)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := machine.MarkRunning(ctx, job.ID, "run-1"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	over, err := machine.UpdateProgress(ctx, job.ID, 150, jobs.Meta{})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if over.Progress != 100 {
		t.Fatalf("progress = %f, want clamped to 100", over.Progress)
	}

	under, err := machine.UpdateProgress(ctx, job.ID, -10, jobs.Meta{})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if under.Progress != 0 {
		t.Fatalf("progress = %f, want clamped to 0", under.Progress)
	}
}

func TestTerminalJobsIgnoreTransitions(t *testing.T) {
	machine, _ := newMachine(t)
	ctx := context.Background()

	job, _, err := machine.Create(ctx, jobs.Subject{ProjectID: "p"}, jobs.TypeExport)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := machine.MarkFailed(ctx, job.ID, "render engine offline"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	after, err := machine.MarkCompleted(ctx, job.ID, "final.mp4")
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if after.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, terminal job must not transition", after.Status)
	}
	if after.ResultRef != "" {
		t.Fatalf("result ref set on terminal no-op: %q", after.ResultRef)
	}

	same, err := machine.UpdateProgress(ctx, job.ID, 42, jobs.Meta{})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if same.Progress != 0 {
		t.Fatalf("progress = %f, terminal job must keep its last value", same.Progress)
	}

	running, err := machine.MarkRunning(ctx, job.ID, "run-2")
	if err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if running.Status != jobs.StatusFailed {
		t.Fatalf("status = %s, want failed", running.Status)
	}
}

func TestFailedPreservesProgress(t *testing.T) {
	machine, _ := newMachine(t)
	ctx := context.Background()

	job, _, err := machine.Create(ctx, jobs.Subject{ProjectID: "p"}, jobs.TypeVideo)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := machine.MarkRunning(ctx, job.ID, "run-1"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := machine.UpdateProgress(ctx, job.ID, 60, jobs.Meta{StepName: "render-clip"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	failed, err := machine.MarkFailed(ctx, job.ID, "timeout")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if failed.Progress != 60 {
		t.Fatalf("progress = %f, failure must not reset progress", failed.Progress)
	}
	if failed.ErrorMessage != "timeout" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil {
		t.Fatal("completed_at not stamped on failure")
	}
}

func TestProgressBroadcastsToSubjectFollowers(t *testing.T) {
	machine, events := newMachine(t)
	ctx := context.Background()

	connID, ch := events.Connect()
	events.Subscribe(connID, "proj-9")

	job, _, err := machine.Create(ctx, jobs.Subject{ProjectID: "proj-9"}, jobs.TypeImage)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := machine.MarkRunning(ctx, job.ID, "run-1"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := machine.UpdateProgress(ctx, job.ID, 25, jobs.Meta{Message: "prompting"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	select {
	case event := <-ch:
		if event.Kind != hub.KindProgress || event.JobID != job.ID || event.Progress != 25 {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no progress event delivered")
	}

	if _, err := machine.MarkCompleted(ctx, job.ID, "frame.png"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	select {
	case event := <-ch:
		if event.Kind != hub.KindCompleted || event.Progress != 100 {
			t.Fatalf("unexpected completion event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion event delivered")
	}
}

func TestRetryRequeuesFailedOnly(t *testing.T) {
	machine, _ := newMachine(t)
	ctx := context.Background()

	job, _, err := machine.Create(ctx, jobs.Subject{ProjectID: "p"}, jobs.TypeScript)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, applied, err := machine.Retry(ctx, job.ID); err != nil || applied {
		t.Fatalf("retry on queued job: applied=%v err=%v", applied, err)
	}

	if _, err := machine.MarkFailed(ctx, job.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	retried, applied, err := machine.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !applied {
		t.Fatal("retry should apply to a failed job")
	}
	if retried.Status != jobs.StatusQueued || retried.ErrorMessage != "" || retried.CompletedStep != "" {
		t.Fatalf("retried job not reset: %+v", retried)
	}
}
