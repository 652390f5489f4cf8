package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelsmith/internal/services"
)

func TestTranscribeConvertsSecondsToMs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			AudioPath string `json:"audio_path"`
			Language  string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Language != "en" {
			t.Errorf("language = %q", req.Language)
		}
		w.Write([]byte(`{"words":[
			{"word":" Hello","start":0.0,"end":0.42,"probability":0.97},
			{"word":"world","start":0.42,"end":0.9014,"probability":0.88},
			{"word":"  ","start":1.0,"end":1.1,"probability":0.1}
		]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Language: "en"})
	words, err := client.Transcribe(context.Background(), "/audio/section.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2 (blank word dropped)", len(words))
	}
	if words[0].Text != "Hello" || words[0].StartMs != 0 || words[0].EndMs != 420 {
		t.Fatalf("word 0 = %+v", words[0])
	}
	if words[1].EndMs != 901 {
		t.Fatalf("word 1 end = %d, want rounded 901", words[1].EndMs)
	}
}

func TestTranscribeValidatesInput(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:0"})
	if _, err := client.Transcribe(context.Background(), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestTranscribeEngineFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Transcribe(context.Background(), "/audio/a.wav")
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("err = %v, want execution error", err)
	}
}
