package app

import (
	"context"
	"strings"
	"time"

	"readaloud/pkg/ai"
	"readaloud/pkg/library"
)

// MaskedAISettings is the settings view returned to clients. The stored key
// never leaves the server in full.
type MaskedAISettings struct {
	APIURL       string    `json:"api_url"`
	Model        string    `json:"model"`
	APIKeyMasked string    `json:"api_key_masked"`
	HasAPIKey    bool      `json:"has_api_key"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func maskKey(key string) string {
	runes := []rune(key)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return "***" + string(runes[len(runes)-4:])
}

func maskedSettings(s library.AISettings) MaskedAISettings {
	return MaskedAISettings{
		APIURL:       s.APIURL,
		Model:        s.Model,
		APIKeyMasked: maskKey(s.APIKey),
		HasAPIKey:    s.APIKey != "",
		UpdatedAt:    s.UpdatedAt,
	}
}

// AISettings returns the stored chat-provider settings with the key masked.
func (a *App) AISettings() MaskedAISettings {
	return maskedSettings(a.store.AISettings())
}

// SaveAISettings validates and stores the chat-provider settings. A blank key
// keeps the previously stored one, so clients can round-trip the masked view
// without wiping the credential.
func (a *App) SaveAISettings(apiURL, apiKey, model string) (MaskedAISettings, error) {
	apiURL = strings.TrimSpace(apiURL)
	model = strings.TrimSpace(model)
	if apiURL == "" || model == "" {
		return MaskedAISettings{}, ErrAIConfigIncomplete
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		apiKey = a.store.AISettings().APIKey
	}
	if err := a.store.SaveAISettings(apiURL, apiKey, model); err != nil {
		return MaskedAISettings{}, err
	}
	return maskedSettings(a.store.AISettings()), nil
}

// TestAI probes the chat provider with a short prompt. Blank arguments fall
// back to the stored settings, so the probe works both before and after
// saving.
func (a *App) TestAI(ctx context.Context, apiURL, apiKey, model string) (ai.ConnectionCheck, error) {
	saved := a.store.AISettings()
	if strings.TrimSpace(apiURL) == "" {
		apiURL = saved.APIURL
	}
	if strings.TrimSpace(apiKey) == "" {
		apiKey = saved.APIKey
	}
	if strings.TrimSpace(model) == "" {
		model = saved.Model
	}
	if strings.TrimSpace(apiURL) == "" || strings.TrimSpace(model) == "" {
		return ai.ConnectionCheck{}, ErrAIConfigIncomplete
	}
	return ai.NewClient(apiURL, apiKey, model).TestConnection(ctx)
}

func (a *App) chatClient() (*ai.Client, error) {
	settings := a.store.AISettings()
	if !settings.Configured() {
		return nil, ErrAIConfigMissing
	}
	return ai.NewClient(settings.APIURL, settings.APIKey, settings.Model), nil
}

// ChatMessage sends a user message about a chapter to the chat provider and
// persists the exchange. With a nil emit it performs a blocking completion.
// With emit set, deltas are forwarded as they arrive and the accumulated
// reply is persisted once the stream ends; a reply cut short upstream is
// still recorded, marked incomplete.
func (a *App) ChatMessage(ctx context.Context, chapterID, message string, emit func(delta string) error) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrMessageRequired
	}
	chapter, ok := a.store.Chapter(chapterID)
	if !ok {
		return "", library.ErrChapterNotFound
	}
	client, err := a.chatClient()
	if err != nil {
		return "", err
	}

	history := a.store.ChatHistory(chapterID)
	messages := ai.BuildMessages(chapter.Content, history, message, a.historyTurns)

	if emit == nil {
		reply, err := client.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
		if err := a.appendExchange(chapterID, message, reply, false); err != nil {
			return reply, err
		}
		return reply, nil
	}

	body, err := client.Stream(ctx, messages)
	if err != nil {
		return "", err
	}
	defer body.Close()

	reply, relayErr := ai.RelayStream(body, emit)
	if relayErr == nil {
		return reply, a.appendExchange(chapterID, message, reply, false)
	}
	if reply != "" {
		if err := a.appendExchange(chapterID, message, reply, true); err != nil {
			return reply, err
		}
	}
	return reply, relayErr
}

func (a *App) appendExchange(chapterID, userMessage, reply string, incomplete bool) error {
	now := time.Now().UTC()
	return a.store.AppendChatTurns(chapterID,
		library.ChatTurn{Role: "user", Content: userMessage, Timestamp: now},
		library.ChatTurn{Role: "assistant", Content: reply, Timestamp: now, Incomplete: incomplete},
	)
}

// ChatHistory returns the stored conversation for a chapter.
func (a *App) ChatHistory(chapterID string) ([]library.ChatTurn, error) {
	if _, ok := a.store.Chapter(chapterID); !ok {
		return nil, library.ErrChapterNotFound
	}
	return a.store.ChatHistory(chapterID), nil
}

// ClearChatHistory drops the stored conversation for a chapter.
func (a *App) ClearChatHistory(chapterID string) error {
	if _, ok := a.store.Chapter(chapterID); !ok {
		return library.ErrChapterNotFound
	}
	return a.store.ClearChatHistory(chapterID)
}
