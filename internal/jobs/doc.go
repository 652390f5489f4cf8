// Package jobs persists generation jobs in SQLite and drives their
// lifecycle: queued jobs move to running, report clamped progress, and
// settle as completed or failed. At most one active job exists per
// (subject, type) pair.
package jobs
