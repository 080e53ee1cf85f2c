package ai

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
)

// UpstreamError reports a chat-completion API failure or a malformed payload.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("chat api error (status %d): %s", e.Status, e.Message)
	}
	return "chat api error: " + e.Message
}

// Client calls an OpenAI-compatible chat-completions endpoint. Works with
// OpenAI, vLLM, LiteLLM, Deepseek, OpenRouter, self-hosted models, etc.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a chat client from saved AI settings. baseURL may or may
// not already carry the /chat/completions suffix.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		endpoint: Endpoint(baseURL),
		apiKey:   strings.TrimSpace(apiKey),
		model:    strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	if c.endpoint == "" {
		return nil, errors.New("chat endpoint not configured")
	}
	if c.model == "" {
		return nil, errors.New("chat model not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

// Complete performs a buffered, non-streaming completion and returns the
// assistant text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, 0.7)
}

func (c *Client) complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	resp, err := c.post(ctx, chatRequest{Model: c.model, Messages: messages, Temperature: temperature})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "malformed completion payload: " + err.Error()}
	}
	if len(chat.Choices) == 0 {
		return "", &UpstreamError{Status: resp.StatusCode, Message: "empty choices in completion payload"}
	}
	return chat.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion and returns the raw SSE body. The
// caller owns the reader and must close it.
func (c *Client) Stream(ctx context.Context, messages []Message) (io.ReadCloser, error) {
	resp, err := c.post(ctx, chatRequest{Model: c.model, Messages: messages, Temperature: 0.7, Stream: true})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ConnectionCheck reports the outcome of a settings connectivity probe.
type ConnectionCheck struct {
	Preview  string        `json:"response_preview"`
	Duration time.Duration `json:"-"`
}

// TestConnection sends a canned prompt to verify that the endpoint, key and
// model work together, and reports the round-trip latency.
func (c *Client) TestConnection(ctx context.Context) (ConnectionCheck, error) {
	start := time.Now()
	messages := []Message{
		{Role: "system", Content: "你是一个测试助手，用于验证API连通性，请简单回答。"},
		{Role: "user", Content: "如果你收到这条信息，请回复：连接正常"},
	}
	text, err := c.complete(ctx, messages, 0)
	if err != nil {
		return ConnectionCheck{}, err
	}
	if runes := []rune(text); len(runes) > 120 {
		text = string(runes[:120])
	}
	return ConnectionCheck{Preview: text, Duration: time.Since(start)}, nil
}
