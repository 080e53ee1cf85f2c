// Package library persists chapters, listening progress, AI settings and
// per-chapter chat history in a single JSON document on disk. The on-disk
// file is the sole source of truth across restarts.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ErrChapterNotFound indicates an operation referenced a chapter id that is
// not in the library.
var ErrChapterNotFound = errors.New("chapter not found")

// Store owns the JSON document. Mutations serialize through a single lock and
// each one rewrites the whole file atomically before returning; readers see
// the last successfully persisted state.
type Store struct {
	path string
	mu   sync.RWMutex
	doc  Document
}

// Open loads the document at path, or starts a fully shaped empty one when
// the file does not exist yet.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("library: data file path required")
	}
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = emptyDocument()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("library: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("library: parse %s: %w", path, err)
	}
	ensureShape(&s.doc)
	return s, nil
}

func emptyDocument() Document {
	return Document{
		Chapters:    map[string]Chapter{},
		Progress:    map[string]Progress{},
		ChatHistory: map[string][]ChatTurn{},
	}
}

// ensureShape initializes missing collections so callers never observe a
// partially shaped document.
func ensureShape(doc *Document) {
	if doc.Chapters == nil {
		doc.Chapters = map[string]Chapter{}
	}
	if doc.Progress == nil {
		doc.Progress = map[string]Progress{}
	}
	if doc.ChatHistory == nil {
		doc.ChatHistory = map[string][]ChatTurn{}
	}
}

// mutate applies fn to a copy of the document and persists the result. The
// in-memory document is replaced only after the write succeeds, so a failed
// write leaves memory and disk in the same pre-mutation state.
func (s *Store) mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneDocument(s.doc)
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return fmt.Errorf("library: persist %s: %w", s.path, err)
	}
	s.doc = next
	return nil
}

func cloneDocument(doc Document) Document {
	next := Document{
		Chapters:    make(map[string]Chapter, len(doc.Chapters)),
		Progress:    make(map[string]Progress, len(doc.Progress)),
		AISettings:  doc.AISettings,
		ChatHistory: make(map[string][]ChatTurn, len(doc.ChatHistory)),
	}
	for id, ch := range doc.Chapters {
		next.Chapters[id] = ch
	}
	for id, p := range doc.Progress {
		next.Progress[id] = p
	}
	for id, turns := range doc.ChatHistory {
		next.ChatHistory[id] = slices.Clone(turns)
	}
	return next
}

// persist writes the full document to a temp file and renames it over the
// data file, so a crash never leaves a half-written document behind.
func (s *Store) persist(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// AddChapter stores a new chapter. Word and character counts are derived from
// the content once, at creation time.
func (s *Store) AddChapter(id, title, content, audioFilename string) (Chapter, error) {
	chapter := Chapter{
		ID:            id,
		Title:         title,
		Content:       content,
		AudioFilename: audioFilename,
		CreatedAt:     time.Now().UTC(),
		WordCount:     len(strings.Fields(content)),
		CharCount:     utf8.RuneCountInString(content),
	}
	err := s.mutate(func(doc *Document) error {
		doc.Chapters[id] = chapter
		return nil
	})
	if err != nil {
		return Chapter{}, err
	}
	return chapter, nil
}

// Chapter returns a chapter by id.
func (s *Store) Chapter(id string) (Chapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.doc.Chapters[id]
	return ch, ok
}

// Chapters returns all chapters, newest first.
func (s *Store) Chapters() []Chapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chapter, 0, len(s.doc.Chapters))
	for _, ch := range s.doc.Chapters {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b Chapter) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// ChapterCount returns the number of stored chapters.
func (s *Store) ChapterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.Chapters)
}

// UpdateChapter replaces the title and/or content of an existing chapter.
// An edited content re-derives the counts; blank arguments keep the stored
// values.
func (s *Store) UpdateChapter(id, title, content string) (Chapter, error) {
	var updated Chapter
	err := s.mutate(func(doc *Document) error {
		ch, ok := doc.Chapters[id]
		if !ok {
			return ErrChapterNotFound
		}
		if t := strings.TrimSpace(title); t != "" {
			ch.Title = t
		}
		if content != "" {
			ch.Content = content
			ch.WordCount = len(strings.Fields(content))
			ch.CharCount = utf8.RuneCountInString(content)
		}
		doc.Chapters[id] = ch
		updated = ch
		return nil
	})
	if err != nil {
		return Chapter{}, err
	}
	return updated, nil
}

// SetChapterAudio records the generated artifact name after synthesis
// completes.
func (s *Store) SetChapterAudio(id, filename string) error {
	return s.mutate(func(doc *Document) error {
		ch, ok := doc.Chapters[id]
		if !ok {
			return ErrChapterNotFound
		}
		ch.AudioFilename = filename
		doc.Chapters[id] = ch
		return nil
	})
}

// DeleteChapter removes a chapter together with its progress and chat history
// in one mutation, and returns the audio filename so the caller can remove
// the artifact.
func (s *Store) DeleteChapter(id string) (string, error) {
	var audio string
	err := s.mutate(func(doc *Document) error {
		ch, ok := doc.Chapters[id]
		if !ok {
			return ErrChapterNotFound
		}
		audio = ch.AudioFilename
		delete(doc.Chapters, id)
		delete(doc.Progress, id)
		delete(doc.ChatHistory, id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return audio, nil
}

// UpdateProgress records the playback position for a chapter, creating the
// entry on the first report.
func (s *Store) UpdateProgress(id string, currentTime float64) error {
	if currentTime < 0 {
		currentTime = 0
	}
	return s.mutate(func(doc *Document) error {
		if _, ok := doc.Chapters[id]; !ok {
			return ErrChapterNotFound
		}
		doc.Progress[id] = Progress{CurrentTime: currentTime, LastRead: time.Now().UTC()}
		return nil
	})
}

// Progress returns the recorded playback position for a chapter.
func (s *Store) Progress(id string) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.doc.Progress[id]
	return p, ok
}

// SaveAISettings replaces the singleton settings record.
func (s *Store) SaveAISettings(apiURL, apiKey, model string) error {
	return s.mutate(func(doc *Document) error {
		doc.AISettings = AISettings{
			APIURL:    apiURL,
			APIKey:    apiKey,
			Model:     model,
			UpdatedAt: time.Now().UTC(),
		}
		return nil
	})
}

// AISettings returns the stored chat-provider settings.
func (s *Store) AISettings() AISettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.AISettings
}

// AppendChatTurns appends turns to a chapter's history in arrival order.
// Turns are never reordered or edited in place. Passing one user/assistant
// pair persists a completed exchange in a single mutation.
func (s *Store) AppendChatTurns(chapterID string, turns ...ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.mutate(func(doc *Document) error {
		if _, ok := doc.Chapters[chapterID]; !ok {
			return ErrChapterNotFound
		}
		doc.ChatHistory[chapterID] = append(doc.ChatHistory[chapterID], turns...)
		return nil
	})
}

// ChatHistory returns a chapter's conversation in chronological order.
func (s *Store) ChatHistory(chapterID string) []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.ChatHistory[chapterID])
}

// ClearChatHistory drops a chapter's conversation.
func (s *Store) ClearChatHistory(chapterID string) error {
	return s.mutate(func(doc *Document) error {
		if _, ok := doc.ChatHistory[chapterID]; ok {
			delete(doc.ChatHistory, chapterID)
		}
		return nil
	})
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }
