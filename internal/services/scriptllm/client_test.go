package scriptllm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reelsmith/internal/services"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	}
	return NewClient(Config{APIKey: "test", BaseURL: url, Model: "test-model"}, append(base, opts...)...)
}

func TestDraftParsesStructuredScript(t *testing.T) {
	payload := `{"title":"Bees","sections":[{"heading":"Intro","sentences":["Bees matter."," Really. "]}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(completionBody(payload)))
	}))
	defer server.Close()

	script, err := newTestClient(server.URL).Draft(context.Background(), "bees", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if script.Title != "Bees" {
		t.Fatalf("Title = %q", script.Title)
	}
	if script.SentenceCount() != 2 {
		t.Fatalf("SentenceCount = %d, want 2", script.SentenceCount())
	}
	if script.Sections[0].Sentences[1] != "Really." {
		t.Fatalf("sentence not trimmed: %q", script.Sections[0].Sentences[1])
	}
}

func TestDraftDecodesFencedJSON(t *testing.T) {
	payload := "```json\n{\"title\":\"T\",\"sections\":[{\"heading\":\"H\",\"sentences\":[\"One.\"]}]}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(payload)))
	}))
	defer server.Close()

	script, err := newTestClient(server.URL).Draft(context.Background(), "topic", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if script.SentenceCount() != 1 {
		t.Fatalf("SentenceCount = %d, want 1", script.SentenceCount())
	}
}

func TestDraftRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	payload := `{"title":"T","sections":[{"heading":"H","sentences":["One."]}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionBody(payload)))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Draft(context.Background(), "topic", ""); err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("server saw %d calls, want 2", calls.Load())
	}
}

func TestDraftDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Draft(context.Background(), "topic", ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("server saw %d calls, want 1", calls.Load())
	}
}

func TestDraftValidatesInput(t *testing.T) {
	client := newTestClient("http://localhost:0")
	if _, err := client.Draft(context.Background(), "   ", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	noKey := NewClient(Config{BaseURL: "http://localhost:0"})
	if _, err := noKey.Draft(context.Background(), "topic", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDecodeModelJSONQuirks(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok":true}`,
		"```json\n{\"ok\":true}\n```",
		"Here you go: {\"ok\":true} hope that helps",
	}
	for _, input := range cases {
		out.OK = false
		if err := DecodeModelJSON(input, &out); err != nil {
			t.Fatalf("DecodeModelJSON(%q): %v", input, err)
		}
		if !out.OK {
			t.Fatalf("DecodeModelJSON(%q) did not populate target", input)
		}
	}
	if err := DecodeModelJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
