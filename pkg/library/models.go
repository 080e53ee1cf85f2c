package library

import "time"

// Chapter is a named unit of text with optional generated audio.
type Chapter struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AudioFilename string    `json:"audio_filename,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	WordCount     int       `json:"word_count"`
	CharCount     int       `json:"char_count"`
}

// Progress records the last playback position for a chapter.
type Progress struct {
	CurrentTime float64   `json:"current_time"`
	LastRead    time.Time `json:"last_read"`
}

// AISettings is the singleton chat-provider configuration. Last write wins.
type AISettings struct {
	APIURL    string    `json:"api_url"`
	APIKey    string    `json:"api_key"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Configured reports whether the settings are usable for chat calls.
func (s AISettings) Configured() bool {
	return s.APIURL != "" && s.Model != ""
}

// ChatTurn is one message in a chapter's conversation. Incomplete marks an
// assistant turn whose stream aborted before the upstream finished; its
// content is whatever had been accumulated at that point.
type ChatTurn struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Incomplete bool      `json:"incomplete,omitempty"`
}

// Document is the full persisted state. All four collections are always
// present in the on-disk JSON, even when empty.
type Document struct {
	Chapters    map[string]Chapter    `json:"chapters"`
	Progress    map[string]Progress   `json:"progress"`
	AISettings  AISettings            `json:"ai_settings"`
	ChatHistory map[string][]ChatTurn `json:"chat_history"`
}
