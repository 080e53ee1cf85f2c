// Package ai assembles chat-completion requests grounded in chapter text and
// relays responses from any OpenAI-compatible endpoint.
package ai

import (
	"strings"

	"readaloud/pkg/library"
)

// Message is one chat message in OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const completionsSuffix = "/chat/completions"

// Endpoint normalizes a configured base URL into the chat-completions
// endpoint. Applying it to its own output returns the same URL, so re-saving
// settings never stacks suffixes.
func Endpoint(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(base), completionsSuffix) {
		return base
	}
	return base + completionsSuffix
}

const systemInstruction = "你是一个阅读助手。用户正在阅读以下文本，请根据文本内容回答用户的问题。\n\n文本内容：\n"

// DefaultHistoryTurns bounds how much conversation history rides along with
// each request.
const DefaultHistoryTurns = 10

// BuildMessages assembles the outbound request: the reading-assistant system
// prompt carrying the full chapter text (never truncated), the most recent
// maxTurns history turns in chronological order, then the new user message
// last.
func BuildMessages(chapterContent string, history []library.ChatTurn, userMessage string, maxTurns int) []Message {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: systemInstruction + chapterContent})
	for _, turn := range history {
		messages = append(messages, Message{Role: turn.Role, Content: turn.Content})
	}
	return append(messages, Message{Role: "user", Content: userMessage})
}
