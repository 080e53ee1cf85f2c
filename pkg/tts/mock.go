package tts

import (
	"context"
	"time"
)

// MockSynthesizer returns canned audio for tests and offline runs.
type MockSynthesizer struct {
	// Delay simulates upstream latency before each response.
	Delay time.Duration
	// Fn overrides the default echo behavior when set.
	Fn func(text string) ([]byte, error)
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Fn != nil {
		return m.Fn(text)
	}
	return []byte(text), nil
}
