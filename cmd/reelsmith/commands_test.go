package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsmith/internal/api"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func newFakeDaemon(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return strings.TrimPrefix(server.URL, "http://")
}

func TestStatusCommandJSON(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(api.StatusResponse{Running: true, PID: 42, JobCounts: map[string]int{"queued": 3}})
	})

	out, err := runCommand(t, "--addr", addr, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var decoded api.StatusResponse
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !decoded.Running || decoded.JobCounts["queued"] != 3 {
		t.Fatalf("unexpected status: %+v", decoded)
	}
}

func TestJobsListRendersTable(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("project") != "p1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.JobView{
			{ID: 1, Type: "audio", Status: "running", Progress: 40, SentenceID: "s1", StepName: "synthesize-audio"},
			{ID: 2, Type: "export", Status: "queued", ProjectID: "p1"},
		}})
	})

	out, err := runCommand(t, "--addr", addr, "jobs", "list", "p1")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	for _, want := range []string{"audio", "running", "40%", "sentence s1", "synthesize-audio", "export"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJobsListEmpty(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.JobListResponse{})
	})

	out, err := runCommand(t, "--addr", addr, "jobs", "list", "p1")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "No jobs found") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestJobsCreateReportsReuse(t *testing.T) {
	addr := newFakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Type != "script" || req.OutlineID != "o1" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(api.CreateJobResponse{
			Job:     api.JobView{ID: 7, Type: "script", Status: "running"},
			Created: false,
		})
	})

	out, err := runCommand(t, "--addr", addr, "jobs", "create", "script", "--outline", "o1")
	if err != nil {
		t.Fatalf("jobs create: %v", err)
	}
	if !strings.Contains(out, "Job #7 already running") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestJobsRetryInvalidID(t *testing.T) {
	_, err := runCommand(t, "--addr", "127.0.0.1:1", "jobs", "retry", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid job id") {
		t.Fatalf("err = %v, want invalid job id", err)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("init output missing path:\n%s", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// A second init without --force must refuse to clobber.
	if _, err := runCommand(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("second init overwrote existing config")
	}
	if _, err := runCommand(t, "--config", path, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}
