package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"readaloud/pkg/library"
	"readaloud/pkg/storage"
	"readaloud/pkg/tts"
)

// SynthesizerFactory builds a synthesizer for a specific voice and speed.
type SynthesizerFactory func(voice string, speed float64) tts.Synthesizer

// Config wires the application services together.
type Config struct {
	Store *library.Store
	Audio storage.AudioStore
	Synth SynthesizerFactory

	// SegmentLimit caps the text length per upstream synthesis request.
	SegmentLimit int
	SynthWorkers int
	HistoryTurns int
}

// App implements the reader's use cases on top of the library store,
// the audio store and the synthesis backend.
type App struct {
	store        *library.Store
	audio        storage.AudioStore
	synth        SynthesizerFactory
	segmentLimit int
	synthWorkers int
	historyTurns int
}

func New(cfg Config) *App {
	segmentLimit := cfg.SegmentLimit
	if segmentLimit <= 0 {
		segmentLimit = 1000
	}
	return &App{
		store:        cfg.Store,
		audio:        cfg.Audio,
		synth:        cfg.Synth,
		segmentLimit: segmentLimit,
		synthWorkers: cfg.SynthWorkers,
		historyTurns: cfg.HistoryTurns,
	}
}

// Voices lists the voices accepted for synthesis.
func (a *App) Voices() []string {
	return slices.Clone(tts.Voices)
}

func (a *App) resolveVoice(voice string) (string, error) {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return tts.DefaultVoice, nil
	}
	if !slices.Contains(tts.Voices, voice) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedVoice, voice)
	}
	return voice, nil
}

// CreateChapter synthesizes the full chapter audio and stores chapter and
// audio together. Nothing is persisted when synthesis fails, and the saved
// audio artifact is removed when persisting the chapter record fails.
func (a *App) CreateChapter(ctx context.Context, title, content, voice string, speed float64) (library.Chapter, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return library.Chapter{}, ErrTitleRequired
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return library.Chapter{}, ErrContentRequired
	}
	voice, err := a.resolveVoice(voice)
	if err != nil {
		return library.Chapter{}, err
	}

	audio, err := tts.SynthesizeLong(ctx, a.synth(voice, speed), content, a.segmentLimit, a.synthWorkers)
	if err != nil {
		return library.Chapter{}, err
	}

	id := newChapterID()
	filename := fmt.Sprintf("%s_%s.mp3", id, time.Now().UTC().Format("20060102_150405"))
	if err := a.audio.Save(ctx, filename, bytes.NewReader(audio), int64(len(audio))); err != nil {
		return library.Chapter{}, fmt.Errorf("save audio: %w", err)
	}

	chapter, err := a.store.AddChapter(id, title, content, filename)
	if err != nil {
		// The chapter never made it into the library; do not leak the file.
		if derr := a.audio.Delete(ctx, filename); derr != nil {
			slog.Warn("orphaned audio cleanup failed", "filename", filename, "error", derr)
		}
		return library.Chapter{}, err
	}
	return chapter, nil
}

// Synthesize produces audio for ad-hoc text without creating a chapter.
// It returns the stored audio filename.
func (a *App) Synthesize(ctx context.Context, text, voice string, speed float64) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrContentRequired
	}
	voice, err := a.resolveVoice(voice)
	if err != nil {
		return "", err
	}

	audio, err := tts.SynthesizeLong(ctx, a.synth(voice, speed), text, a.segmentLimit, a.synthWorkers)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("tts_%s_%s.mp3", randomHex(4), time.Now().UTC().Format("20060102_150405"))
	if err := a.audio.Save(ctx, filename, bytes.NewReader(audio), int64(len(audio))); err != nil {
		return "", fmt.Errorf("save audio: %w", err)
	}
	return filename, nil
}

// Chapter returns a chapter with its reading progress, if any was recorded.
func (a *App) Chapter(id string) (library.Chapter, *library.Progress, error) {
	chapter, ok := a.store.Chapter(id)
	if !ok {
		return library.Chapter{}, nil, library.ErrChapterNotFound
	}
	if progress, ok := a.store.Progress(id); ok {
		return chapter, &progress, nil
	}
	return chapter, nil, nil
}

// Chapters lists all chapters, newest first.
func (a *App) Chapters() []library.Chapter {
	return a.store.Chapters()
}

// UpdateChapter edits a chapter's title and/or content. Blank arguments keep
// the stored values. The existing audio artifact is not regenerated.
func (a *App) UpdateChapter(id, title, content string) (library.Chapter, error) {
	return a.store.UpdateChapter(id, title, content)
}

// DeleteChapter removes the chapter, its progress, its chat history and its
// audio artifact. A failed artifact delete is logged but does not undo the
// library removal.
func (a *App) DeleteChapter(ctx context.Context, id string) error {
	audioFilename, err := a.store.DeleteChapter(id)
	if err != nil {
		return err
	}
	if audioFilename != "" {
		if err := a.audio.Delete(ctx, audioFilename); err != nil {
			slog.Warn("audio artifact delete failed", "chapter_id", id, "filename", audioFilename, "error", err)
		}
	}
	return nil
}

// UpdateProgress records the playback position for a chapter.
func (a *App) UpdateProgress(id string, currentTime float64) error {
	return a.store.UpdateProgress(id, currentTime)
}

// OpenAudio opens a stored audio file for streaming to the client.
func (a *App) OpenAudio(ctx context.Context, filename string) (io.ReadCloser, error) {
	return a.audio.Open(ctx, filename)
}

func newChapterID() string {
	return "chapter_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:n*2]
	}
	return hex.EncodeToString(buf)
}
