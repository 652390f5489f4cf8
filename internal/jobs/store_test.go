package jobs_test

import (
	"context"
	"testing"

	"reelsmith/internal/jobs"
	"reelsmith/internal/testsupport"
)

func TestInsertAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	subject := jobs.Subject{ProjectID: "proj-1", SentenceID: "sent-1"}
	job, err := store.Insert(ctx, subject, jobs.TypeAudio)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected non-zero job id")
	}
	if job.Status != jobs.StatusQueued {
		t.Fatalf("Status = %s, want queued", job.Status)
	}
	if job.Progress != 0 {
		t.Fatalf("Progress = %f, want 0", job.Progress)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil {
		t.Fatal("GetByID returned nil for existing job")
	}
	if fetched.Subject != subject {
		t.Fatalf("Subject = %+v, want %+v", fetched.Subject, subject)
	}
	if fetched.Type != jobs.TypeAudio {
		t.Fatalf("Type = %s, want audio", fetched.Type)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %+v", job)
	}
}

func TestActiveBySubjectAndType(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	subject := jobs.Subject{ProjectID: "proj-1", SentenceID: "sent-1"}
	job := testsupport.NewQueuedJob(t, store, subject, jobs.TypeImage)

	active, err := store.ActiveBySubjectAndType(ctx, subject, jobs.TypeImage)
	if err != nil {
		t.Fatalf("ActiveBySubjectAndType: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("active = %+v, want job %d", active, job.ID)
	}

	// Different sentence under the same project must not match.
	other, err := store.ActiveBySubjectAndType(ctx,
		jobs.Subject{ProjectID: "proj-1", SentenceID: "sent-2"}, jobs.TypeImage)
	if err != nil {
		t.Fatalf("ActiveBySubjectAndType: %v", err)
	}
	if other != nil {
		t.Fatalf("expected no match for different sentence, got %+v", other)
	}

	// A completed job no longer holds the slot.
	job.Status = jobs.StatusCompleted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	done, err := store.ActiveBySubjectAndType(ctx, subject, jobs.TypeImage)
	if err != nil {
		t.Fatalf("ActiveBySubjectAndType: %v", err)
	}
	if done != nil {
		t.Fatalf("expected no active job after completion, got %+v", done)
	}
}

func TestNextQueuedForTypesOrdersByAge(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p", SentenceID: "s1"}, jobs.TypeImage)
	testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p", SentenceID: "s2"}, jobs.TypeVideo)
	testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p"}, jobs.TypeScript)

	next, err := store.NextQueuedForTypes(ctx, jobs.TypeImage, jobs.TypeVideo)
	if err != nil {
		t.Fatalf("NextQueuedForTypes: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next = %+v, want job %d", next, first.ID)
	}

	none, err := store.NextQueuedForTypes(ctx, jobs.TypeExport)
	if err != nil {
		t.Fatalf("NextQueuedForTypes: %v", err)
	}
	if none != nil {
		t.Fatalf("expected drained queue for export, got %+v", none)
	}
}

func TestProjectScopedListsAndDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	active := testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p1", SentenceID: "s1"}, jobs.TypeAudio)
	failed := testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p1", SentenceID: "s2"}, jobs.TypeImage)
	testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p2"}, jobs.TypeScript)

	failed.Status = jobs.StatusFailed
	failed.ErrorMessage = "engine offline"
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := store.ListByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListByProject returned %d jobs, want 2", len(all))
	}

	activeList, err := store.ListActiveByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ListActiveByProject: %v", err)
	}
	if len(activeList) != 1 || activeList[0].ID != active.ID {
		t.Fatalf("active list = %+v, want just job %d", activeList, active.ID)
	}

	failedList, err := store.ListFailedByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ListFailedByProject: %v", err)
	}
	if len(failedList) != 1 || failedList[0].ErrorMessage != "engine offline" {
		t.Fatalf("failed list = %+v", failedList)
	}

	deleted, err := store.DeleteByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("DeleteByProject: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("DeleteByProject removed %d rows, want 2", deleted)
	}
	remaining, err := store.ListByProject(ctx, "p2")
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("other project lost jobs: %+v", remaining)
	}
}

func TestResetStuckRunning(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p"}, jobs.TypeScript)
	job.Status = jobs.StatusRunning
	job.CompletedStep = "draft-outline"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := store.ResetStuckRunning(ctx)
	if err != nil {
		t.Fatalf("ResetStuckRunning: %v", err)
	}
	if count != 1 {
		t.Fatalf("reset %d jobs, want 1", count)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != jobs.StatusQueued {
		t.Fatalf("Status = %s, want queued", reloaded.Status)
	}
	if reloaded.CompletedStep != "draft-outline" {
		t.Fatalf("step cursor lost on reset: %q", reloaded.CompletedStep)
	}
}

func TestStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p", SentenceID: "s1"}, jobs.TypeAudio)
	done := testsupport.NewQueuedJob(t, store, jobs.Subject{ProjectID: "p", SentenceID: "s2"}, jobs.TypeAudio)
	done.Status = jobs.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusQueued] != 1 || stats[jobs.StatusCompleted] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
