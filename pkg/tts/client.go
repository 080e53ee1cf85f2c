// Package tts synthesizes speech through a TTSFM/OpenAI-compatible speech
// endpoint and reassembles long-form audio from independently synthesized
// segments.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Voices supported by the TTSFM backend.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// DefaultVoice is used when a request does not name one.
const DefaultVoice = "alloy"

// Synthesizer converts one text segment into raw audio bytes. Each call is
// independent and idempotent; retry policy belongs to the caller.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SynthesisError reports an upstream synthesis failure with the provider
// status and message.
type SynthesisError struct {
	Status  int
	Message string
}

func (e *SynthesisError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("tts api error (status %d): %s", e.Status, e.Message)
	}
	return "tts api error: " + e.Message
}

// Client calls a TTSFM/OpenAI-compatible /v1/audio/speech endpoint.
// apiKey can be empty for local backends that do not require authentication.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	speed      float64
	format     string
	httpClient *http.Client
}

// NewClient builds a speech client. baseURL is the provider root, without the
// /v1 path.
func NewClient(baseURL, apiKey, model, voice string, speed float64) *Client {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = DefaultVoice
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		voice:   voice,
		speed:   speed,
		format:  "mp3",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithVoice returns a copy of the client bound to the requested voice
// parameters. Zero values keep the configured defaults.
func (c *Client) WithVoice(voice string, speed float64) *Client {
	cp := *c
	if v := strings.TrimSpace(voice); v != "" {
		cp.voice = v
	}
	if speed > 0 {
		cp.speed = speed
	}
	return &cp
}

// Format returns the audio container extension produced by the backend.
func (c *Client) Format() string { return c.format }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize posts one text segment and returns the raw audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, &SynthesisError{Message: "tts base url not configured"}
	}
	body, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: c.format,
		Speed:          c.speed,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &SynthesisError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Status: resp.StatusCode, Message: "empty audio response"}
	}
	return audio, nil
}
