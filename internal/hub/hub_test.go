package hub

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcastReachesAllFollowers(t *testing.T) {
	h := New(nil)
	defer h.Close()

	idA, chA := h.Connect()
	idB, chB := h.Connect()
	idC, chC := h.Connect()
	h.Subscribe(idA, "project-1")
	h.Subscribe(idB, "project-1")
	h.Subscribe(idC, "project-2")

	h.Broadcast("project-1", Event{Kind: KindProgress, JobID: 7, Progress: 50})

	for _, ch := range []<-chan Event{chA, chB} {
		event := recvEvent(t, ch)
		if event.JobID != 7 || event.Progress != 50 {
			t.Fatalf("unexpected event %+v", event)
		}
	}
	select {
	case event := <-chC:
		t.Fatalf("connection on another subject received %+v", event)
	default:
	}
}

func TestSlowConsumerDoesNotBlockBroadcast(t *testing.T) {
	h := New(nil)
	defer h.Close()

	slowID, _ := h.Connect()
	fastID, fastCh := h.Connect()
	h.Subscribe(slowID, "project-1")
	h.Subscribe(fastID, "project-1")

	// Overflow the slow connection's buffer. The fast connection drains as
	// it goes, so every broadcast must return immediately.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < connBuffer*2; i++ {
			h.Broadcast("project-1", Event{Kind: KindProgress, JobID: int64(i)})
			select {
			case <-fastCh:
			default:
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on slow consumer")
	}
	if h.Dropped() == 0 {
		t.Fatal("expected drops for the saturated connection")
	}
}

func TestDisconnectRemovesFollowerAndClosesChannel(t *testing.T) {
	h := New(nil)
	defer h.Close()

	id, ch := h.Connect()
	h.Subscribe(id, "project-1")
	if got := h.Followers("project-1"); got != 1 {
		t.Fatalf("Followers = %d, want 1", got)
	}

	h.Disconnect(id)
	if got := h.Followers("project-1"); got != 0 {
		t.Fatalf("Followers after disconnect = %d, want 0", got)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after disconnect")
	}

	// Idempotent.
	h.Disconnect(id)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New(nil)
	defer h.Close()

	id, ch := h.Connect()
	h.Subscribe(id, "project-1")
	h.Subscribe(id, "project-1") // duplicate subscribe is a no-op
	h.Unsubscribe(id, "project-1")

	h.Broadcast("project-1", Event{Kind: KindProgress, JobID: 1})
	select {
	case event := <-ch:
		t.Fatalf("received event after unsubscribe: %+v", event)
	default:
	}
}

func TestBroadcastAfterCloseIsNoop(t *testing.T) {
	h := New(nil)
	id, ch := h.Connect()
	h.Subscribe(id, "project-1")
	h.Close()

	h.Broadcast("project-1", Event{Kind: KindProgress})
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after hub close")
	}
}
