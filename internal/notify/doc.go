// Package notify delivers best-effort push notifications through ntfy.
// Notification failures are logged by callers and never fail a job.
package notify
