// Package batch submits groups of homogeneous generation requests to a
// single-stream engine and resolves them with per-item callbacks. The
// engine pays a large fixed cost to switch loaded models, so the whole
// batch is enqueued before any result is awaited.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Class names the scarce engine resource a batch runs against. At most one
// batch per class is in flight at a time.
type Class string

const (
	ClassImage Class = "image"
	ClassVideo Class = "video"
	ClassAudio Class = "audio"
)

// Item pairs a subject with its generation payload for one submission.
type Item struct {
	ID      string
	Payload any
}

// Submission records the outcome of enqueueing one item: a queue token on
// success or the submission-time failure.
type Submission struct {
	Item  Item
	Token string
	Err   error
}

// Result is the final outcome for one item.
type Result struct {
	Item      Item
	OutputRef string
	Err       error
}

// PollStatus is one engine answer for an in-flight token.
type PollStatus struct {
	Done      bool
	Progress  float64
	OutputRef string
	Failure   string
}

// Engine is the submit-and-poll surface of the generation engine.
type Engine interface {
	Submit(ctx context.Context, class Class, item Item) (string, error)
	Poll(ctx context.Context, class Class, token string) (PollStatus, error)
}

// OnItemComplete fires exactly once per successfully completed item, in
// completion order, while the rest of the batch is still running.
type OnItemComplete func(item Item, outputRef string)

// OnProgress fires after every individual completion or failure.
type OnProgress func(completed, total int)

// Scheduler serializes batches per resource class and drives the
// submit-all-then-await cycle against the engine.
type Scheduler struct {
	engine       Engine
	pollInterval time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[Class]*sync.Mutex
}

// NewScheduler wires a scheduler over the engine. pollInterval bounds how
// often in-flight tokens are re-polled.
func NewScheduler(engine Engine, pollInterval time.Duration, logger *slog.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		engine:       engine,
		pollInterval: pollInterval,
		logger:       logger.With(logging.String(logging.FieldComponent, "batch")),
		locks:        make(map[Class]*sync.Mutex),
	}
}

// classLock returns the mutex guarding single-flight for the class.
func (s *Scheduler) classLock(class Class) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[class]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[class] = lock
	}
	return lock
}

// Run executes one full batch cycle: it acquires the class's single-flight
// lock, submits every item, then awaits all tokens. Items that fail at
// submission appear in the results with their submission error and do not
// block the rest of the batch.
func (s *Scheduler) Run(ctx context.Context, class Class, items []Item, perItemTimeout time.Duration, onItemComplete OnItemComplete, onProgress OnProgress) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}
	lock := s.classLock(class)
	lock.Lock()
	defer lock.Unlock()

	submissions := s.SubmitBatch(ctx, class, items)
	return s.AwaitBatch(ctx, class, submissions, perItemTimeout, onItemComplete, onProgress)
}

// SubmitBatch enqueues every item on the engine without waiting for
// completion. A submission failure is recorded and the remaining items are
// still submitted.
func (s *Scheduler) SubmitBatch(ctx context.Context, class Class, items []Item) []Submission {
	submissions := make([]Submission, 0, len(items))
	for _, item := range items {
		token, err := s.engine.Submit(ctx, class, item)
		if err != nil {
			s.logger.Warn("batch item submission failed",
				logging.String("class", string(class)),
				logging.String("item", item.ID),
				logging.Error(err))
			submissions = append(submissions, Submission{Item: item, Err: err})
			continue
		}
		submissions = append(submissions, Submission{Item: item, Token: token})
	}
	return submissions
}

// AwaitBatch polls every submitted token until it resolves or the aggregate
// deadline (token count times perItemTimeout) elapses. Tokens unresolved at
// the deadline are reported as timed out without affecting items that
// already completed. Cancellation is honored between polls; results
// produced before cancellation are preserved in the returned slice.
func (s *Scheduler) AwaitBatch(ctx context.Context, class Class, submissions []Submission, perItemTimeout time.Duration, onItemComplete OnItemComplete, onProgress OnProgress) ([]Result, error) {
	total := len(submissions)
	results := make([]Result, 0, total)
	pending := make([]Submission, 0, total)

	for _, submission := range submissions {
		if submission.Err != nil {
			results = append(results, Result{Item: submission.Item, Err: submission.Err})
			continue
		}
		pending = append(pending, submission)
	}
	if len(results) > 0 {
		notifyProgress(onProgress, len(results), total)
	}

	deadline := time.Now().Add(time.Duration(len(pending)) * perItemTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for len(pending) > 0 {
		remaining := pending[:0]
		for _, submission := range pending {
			status, err := s.engine.Poll(ctx, class, submission.Token)
			if err != nil {
				results = append(results, Result{Item: submission.Item, Err: err})
				notifyProgress(onProgress, len(results), total)
				continue
			}
			if !status.Done {
				remaining = append(remaining, submission)
				continue
			}
			if status.Failure != "" {
				results = append(results, Result{
					Item: submission.Item,
					Err:  services.Wrap(services.ErrExecution, "batch", "await", status.Failure, nil),
				})
				notifyProgress(onProgress, len(results), total)
				continue
			}
			results = append(results, Result{Item: submission.Item, OutputRef: status.OutputRef})
			if onItemComplete != nil {
				onItemComplete(submission.Item, status.OutputRef)
			}
			notifyProgress(onProgress, len(results), total)
		}
		pending = remaining
		if len(pending) == 0 {
			break
		}

		if time.Now().After(deadline) {
			for _, submission := range pending {
				results = append(results, Result{
					Item: submission.Item,
					Err: services.Wrap(services.ErrTimeout, "batch", "await",
						fmt.Sprintf("token %s unresolved at batch deadline", submission.Token), nil),
				})
				notifyProgress(onProgress, len(results), total)
			}
			return results, nil
		}

		select {
		case <-ctx.Done():
			for _, submission := range pending {
				results = append(results, Result{Item: submission.Item, Err: ctx.Err()})
			}
			return results, ctx.Err()
		case <-ticker.C:
		}
	}
	return results, nil
}

func notifyProgress(onProgress OnProgress, completed, total int) {
	if onProgress != nil {
		onProgress(completed, total)
	}
}
