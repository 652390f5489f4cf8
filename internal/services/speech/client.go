// Package speech talks to the text-to-speech engine over its local HTTP
// API. Synthesis is synchronous: one request produces one audio file.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const defaultTimeout = 300 * time.Second

// Config captures the runtime settings for the speech engine.
type Config struct {
	BaseURL        string
	Voice          string
	TimeoutSeconds int
}

// Client issues synthesis requests against the engine.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a speech client.
func NewClient(cfg Config) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Voice:          strings.TrimSpace(cfg.Voice),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Result is the outcome of one synthesis call.
type Result struct {
	AudioFile  string `json:"audio_path"`
	DurationMs int64  `json:"duration_ms"`
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize renders the text as spoken audio with the configured voice and
// returns the engine-side file path and duration.
func (c *Client) Synthesize(ctx context.Context, text string) (Result, error) {
	var empty Result
	text = strings.TrimSpace(text)
	if text == "" {
		return empty, services.Wrap(services.ErrValidation, "speech", "synthesize", "text required", nil)
	}

	encoded, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.cfg.Voice})
	if err != nil {
		return empty, services.Wrap(services.ErrExecution, "speech", "synthesize", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/synthesize", bytes.NewReader(encoded))
	if err != nil {
		return empty, services.Wrap(services.ErrExecution, "speech", "synthesize", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return empty, services.Wrap(services.ErrTimeout, "speech", "synthesize", "request deadline exceeded", err)
		}
		return empty, services.Wrap(services.ErrUnavailable, "speech", "synthesize", "engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrUnavailable, "speech", "synthesize", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExecution, "speech", "synthesize",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return empty, services.Wrap(services.ErrExecution, "speech", "synthesize", "decode response", err)
	}
	if result.AudioFile == "" {
		return empty, services.Wrap(services.ErrExecution, "speech", "synthesize", "engine returned no audio path", nil)
	}
	return result, nil
}

// HealthCheck verifies the engine answers on its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrExecution, "speech", "health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "speech", "health", "engine unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrUnavailable, "speech", "health",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}
