package hub

import (
	"log/slog"
	"sync"

	"reelsmith/internal/logging"
)

// Event is a progress notification fanned out to subscribed connections.
type Event struct {
	Kind        string  `json:"kind"`
	JobID       int64   `json:"jobId"`
	JobType     string  `json:"jobType"`
	SubjectID   string  `json:"subjectId,omitempty"`
	Progress    float64 `json:"progress"`
	TotalSteps  int     `json:"totalSteps,omitempty"`
	CurrentStep int     `json:"currentStep,omitempty"`
	StepName    string  `json:"stepName,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Event kinds emitted by the job machine.
const (
	KindProgress  = "job.progress"
	KindCompleted = "job.completed"
	KindFailed    = "job.failed"
)

const connBuffer = 32

type connection struct {
	events chan Event
}

// Hub routes events from job subjects to subscribed connections. A
// connection may follow any number of subjects and a subject may have any
// number of followers. Delivery is best effort: a connection that cannot
// keep up drops events rather than stalling the publisher.
type Hub struct {
	mu      sync.Mutex
	closed  bool
	nextID  int64
	conns   map[int64]*connection
	bySubj  map[string]map[int64]struct{}
	subjOf  map[int64]map[string]struct{}
	logger  *slog.Logger
	dropped int64
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		conns:  make(map[int64]*connection),
		bySubj: make(map[string]map[int64]struct{}),
		subjOf: make(map[int64]map[string]struct{}),
		logger: logger.With(logging.String(logging.FieldComponent, "hub")),
	}
}

// Connect registers a new connection and returns its id along with the
// channel events are delivered on. The channel is closed on Disconnect.
func (h *Hub) Connect() (int64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan Event)
		close(ch)
		return 0, ch
	}
	h.nextID++
	id := h.nextID
	conn := &connection{events: make(chan Event, connBuffer)}
	h.conns[id] = conn
	h.subjOf[id] = make(map[string]struct{})
	return id, conn.events
}

// Subscribe adds the connection to a subject's follower set. Subscribing
// twice to the same subject is a no-op. Unknown connections are ignored.
func (h *Hub) Subscribe(connID int64, subject string) {
	if subject == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subjects, ok := h.subjOf[connID]
	if !ok {
		return
	}
	subjects[subject] = struct{}{}
	followers, ok := h.bySubj[subject]
	if !ok {
		followers = make(map[int64]struct{})
		h.bySubj[subject] = followers
	}
	followers[connID] = struct{}{}
}

// Unsubscribe removes the connection from a subject's follower set.
func (h *Hub) Unsubscribe(connID int64, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFollower(connID, subject)
	if subjects, ok := h.subjOf[connID]; ok {
		delete(subjects, subject)
	}
}

// Disconnect removes a connection from every subject it follows and closes
// its event channel. Disconnecting an unknown id is a no-op.
func (h *Hub) Disconnect(connID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	for subject := range h.subjOf[connID] {
		h.removeFollower(connID, subject)
	}
	delete(h.subjOf, connID)
	delete(h.conns, connID)
	close(conn.events)
}

// Broadcast delivers the event to every follower of the subject. Followers
// with full buffers are skipped so a single slow consumer cannot block
// job execution.
func (h *Hub) Broadcast(subject string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for connID := range h.bySubj[subject] {
		conn, ok := h.conns[connID]
		if !ok {
			continue
		}
		select {
		case conn.events <- event:
		default:
			h.dropped++
			h.logger.Debug("dropped event for slow consumer",
				logging.Int64("conn_id", connID),
				logging.String("subject", subject))
		}
	}
}

// Followers returns how many connections currently follow the subject.
func (h *Hub) Followers(subject string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bySubj[subject])
}

// Dropped returns the number of events discarded for slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every connection and rejects further broadcasts.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, conn := range h.conns {
		delete(h.conns, id)
		delete(h.subjOf, id)
		close(conn.events)
	}
	h.bySubj = make(map[string]map[int64]struct{})
}

// removeFollower must be called with h.mu held.
func (h *Hub) removeFollower(connID int64, subject string) {
	followers, ok := h.bySubj[subject]
	if !ok {
		return
	}
	delete(followers, connID)
	if len(followers) == 0 {
		delete(h.bySubj, subject)
	}
}
