// Package transcribe talks to the speech-to-text engine. The engine
// returns a flat word list with second-resolution timestamps; this client
// converts them to milliseconds for the alignment engine.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"reelsmith/internal/services"
)

const defaultTimeout = 600 * time.Second

// Config captures the runtime settings for the transcription engine.
type Config struct {
	BaseURL        string
	Language       string
	TimeoutSeconds int
}

// Client issues transcription requests against the engine.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a transcription client.
func NewClient(cfg Config) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Word is one recognized word with millisecond timestamps.
type Word struct {
	Text        string
	StartMs     int64
	EndMs       int64
	Probability float64
}

type transcribeRequest struct {
	AudioPath string `json:"audio_path"`
	Language  string `json:"language"`
}

// Engine wire format: timestamps in fractional seconds.
type transcribeResponse struct {
	Words []struct {
		Word        string  `json:"word"`
		Start       float64 `json:"start"`
		End         float64 `json:"end"`
		Probability float64 `json:"probability"`
	} `json:"words"`
}

// Transcribe recognizes the words spoken in the audio file, in order.
func (c *Client) Transcribe(ctx context.Context, audioFile string) ([]Word, error) {
	audioFile = strings.TrimSpace(audioFile)
	if audioFile == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "transcribe", "audio file required", nil)
	}

	encoded, err := json.Marshal(transcribeRequest{AudioPath: audioFile, Language: c.cfg.Language})
	if err != nil {
		return nil, services.Wrap(services.ErrExecution, "transcribe", "transcribe", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/transcribe", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrExecution, "transcribe", "transcribe", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "transcribe", "transcribe", "request deadline exceeded", err)
		}
		return nil, services.Wrap(services.ErrUnavailable, "transcribe", "transcribe", "engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUnavailable, "transcribe", "transcribe", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExecution, "transcribe", "transcribe",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded transcribeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExecution, "transcribe", "transcribe", "decode response", err)
	}

	words := make([]Word, 0, len(decoded.Words))
	for _, w := range decoded.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:        text,
			StartMs:     secondsToMs(w.Start),
			EndMs:       secondsToMs(w.End),
			Probability: w.Probability,
		})
	}
	return words, nil
}

// HealthCheck verifies the engine answers on its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return services.Wrap(services.ErrExecution, "transcribe", "health", "build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "transcribe", "health", "engine unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrUnavailable, "transcribe", "health",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}

func secondsToMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}
