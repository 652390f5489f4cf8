// Package apiclient provides the HTTP client used by the reelsmith CLI to
// talk to a running daemon.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"reelsmith/internal/api"
	"reelsmith/internal/hub"
)

// ErrNotFound is returned when the daemon reports a missing resource.
var ErrNotFound = errors.New("not found")

// Client talks to the daemon API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon listening at addr (host:port).
func New(addr string) (*Client, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return nil, errors.New("daemon address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Status fetches the daemon runtime summary.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob enqueues a job, or returns the already-active job for the same
// subject and type.
func (c *Client) CreateJob(ctx context.Context, req api.CreateJobRequest) (*api.CreateJobResponse, error) {
	var out api.CreateJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (*api.JobView, error) {
	var out api.JobResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// ListJobs fetches a project's jobs. Filter may be empty, "active", or
// "failed".
func (c *Client) ListJobs(ctx context.Context, projectID, filter string) ([]api.JobView, error) {
	path := "/api/jobs?project=" + url.QueryEscape(projectID)
	if filter != "" {
		path += "&filter=" + url.QueryEscape(filter)
	}
	var out api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// RetryJob requeues a failed job.
func (c *Client) RetryJob(ctx context.Context, id int64) (*api.RetryJobResponse, error) {
	var out api.RetryJobResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/retry", id), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProjectJobs removes every job scoped to the project.
func (c *Client) DeleteProjectJobs(ctx context.Context, projectID string) (int64, error) {
	var out api.DeleteJobsResponse
	path := "/api/projects/" + url.PathEscape(projectID) + "/jobs"
	if err := c.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// Watch opens the progress event stream for the given subjects. Events are
// delivered on the returned channel until the context is cancelled or the
// daemon closes the connection; the channel is then closed.
func (c *Client) Watch(ctx context.Context, subjects ...string) (<-chan hub.Event, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"
	if len(subjects) > 0 {
		query := url.Values{}
		for _, subject := range subjects {
			query.Add("subject", subject)
		}
		wsURL += "?" + query.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	events := make(chan hub.Event)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var event hub.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		message := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, message)
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
