// Package render talks to the GPU image/video synthesis engine. The engine
// accepts one execution stream and exposes a submit/poll pair: submissions
// return a queue token immediately and results are polled until done.
package render

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

const defaultSubmitTimeout = 60 * time.Second

// Kind selects which synthesis pipeline a request targets.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Config captures the runtime settings for the render engine.
type Config struct {
	BaseURL           string
	ImageModel        string
	VideoModel        string
	DefaultStyle      string
	SubmitTimeoutSecs int
}

// Client issues submit and poll requests against the engine.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a render client.
func NewClient(cfg Config) *Client {
	timeout := defaultSubmitTimeout
	if cfg.SubmitTimeoutSecs > 0 {
		timeout = time.Duration(cfg.SubmitTimeoutSecs) * time.Second
	}
	return &Client{
		cfg: Config{
			BaseURL:           strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ImageModel:        strings.TrimSpace(cfg.ImageModel),
			VideoModel:        strings.TrimSpace(cfg.VideoModel),
			DefaultStyle:      strings.TrimSpace(cfg.DefaultStyle),
			SubmitTimeoutSecs: cfg.SubmitTimeoutSecs,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Request is a fully resolved generation request. Resolution happens once,
// up front, in ResolveRequest; nothing downstream re-derives defaults.
type Request struct {
	Kind           Kind    `json:"kind"`
	Prompt         string  `json:"prompt"`
	Model          string  `json:"model"`
	Style          string  `json:"style"`
	SourceImage    string  `json:"source_image,omitempty"`
	CameraMovement string  `json:"camera_movement,omitempty"`
	MotionStrength float64 `json:"motion_strength,omitempty"`
}

// RequestInput carries the raw, possibly empty fields a caller has for one
// generation. ResolveRequest fills the gaps from configuration.
type RequestInput struct {
	Kind           Kind
	Prompt         string
	Style          string
	SourceImage    string
	CameraMovement string
	MotionStrength float64
}

// ResolveRequest produces the single resolved request for an input,
// applying the configured model and style defaults exactly once.
func (c *Client) ResolveRequest(input RequestInput) (Request, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return Request{}, services.Wrap(services.ErrValidation, "render", "resolve", "prompt required", nil)
	}
	request := Request{
		Kind:           input.Kind,
		Prompt:         prompt,
		Style:          strings.TrimSpace(input.Style),
		SourceImage:    strings.TrimSpace(input.SourceImage),
		CameraMovement: strings.TrimSpace(input.CameraMovement),
		MotionStrength: input.MotionStrength,
	}
	if request.Style == "" {
		request.Style = c.cfg.DefaultStyle
	}
	switch input.Kind {
	case KindImage:
		request.Model = c.cfg.ImageModel
	case KindVideo:
		request.Model = c.cfg.VideoModel
	default:
		return Request{}, services.Wrap(services.ErrValidation, "render", "resolve",
			fmt.Sprintf("unknown kind %q", input.Kind), nil)
	}
	if request.Model == "" {
		return Request{}, services.Wrap(services.ErrValidation, "render", "resolve",
			fmt.Sprintf("no model configured for %s", input.Kind), nil)
	}
	return request, nil
}

type submitResponse struct {
	Token string `json:"token"`
}

// Submit enqueues a resolved request and returns the engine's queue token.
func (c *Client) Submit(ctx context.Context, request Request) (string, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", services.Wrap(services.ErrExecution, "render", "submit", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/queue", bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrExecution, "render", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "render", "submit", "request deadline exceeded", err)
		}
		return "", services.Wrap(services.ErrUnavailable, "render", "submit", "engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrUnavailable, "render", "submit", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", services.Wrap(services.ErrExecution, "render", "submit",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded submitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrExecution, "render", "submit", "decode response", err)
	}
	if decoded.Token == "" {
		return "", services.Wrap(services.ErrExecution, "render", "submit", "engine returned no token", nil)
	}
	return decoded.Token, nil
}

// HealthCheck verifies the engine answers on its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrExecution, "render", "health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "render", "health", "engine unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrUnavailable, "render", "health",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

// Status is one poll answer for an in-flight token.
type Status struct {
	Done       bool    `json:"done"`
	Progress   float64 `json:"progress"`
	OutputFile string  `json:"output_path"`
	Error      string  `json:"error"`
}

// Poll reports the current state of a queued request.
func (c *Client) Poll(ctx context.Context, token string) (Status, error) {
	var empty Status
	token = strings.TrimSpace(token)
	if token == "" {
		return empty, services.Wrap(services.ErrValidation, "render", "poll", "token required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/queue/"+token, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrExecution, "render", "poll", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrUnavailable, "render", "poll", "engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrUnavailable, "render", "poll", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, services.Wrap(services.ErrExecution, "render", "poll",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return empty, services.Wrap(services.ErrExecution, "render", "poll", "decode response", err)
	}
	return status, nil
}
