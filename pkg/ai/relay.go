package ai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrStreamAborted marks a stream that ended before the upstream finished.
// Whatever was forwarded stays forwarded; the accumulated text travels back
// alongside this error so the caller can persist it as an incomplete turn.
var ErrStreamAborted = errors.New("chat stream aborted")

// RelayStream reads an OpenAI-style SSE stream, forwarding each content delta
// through emit in arrival order while accumulating the full text. An emit
// failure (caller disconnected) stops forwarding, but accumulation continues
// to the end of the stream. The accumulated text is returned in every case,
// with ErrStreamAborted when the upstream ended without a completion marker.
func RelayStream(body io.Reader, emit func(delta string) error) (string, error) {
	var full strings.Builder
	forwarding := emit != nil
	finished := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			finished = true
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if chunk.Choices[0].FinishReason == "stop" {
			finished = true
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if forwarding {
			if err := emit(delta); err != nil {
				forwarding = false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("%w: %v", ErrStreamAborted, err)
	}
	if !finished {
		return full.String(), fmt.Errorf("%w: upstream ended before completion", ErrStreamAborted)
	}
	return full.String(), nil
}
