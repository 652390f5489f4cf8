package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewQueuedJob inserts a queued job for tests using the provided store.
func NewQueuedJob(t testing.TB, store *jobs.Store, subject jobs.Subject, jobType jobs.Type) *jobs.Job {
	t.Helper()

	job, err := store.Insert(context.Background(), subject, jobType)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}
