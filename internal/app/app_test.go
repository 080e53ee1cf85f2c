package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"readaloud/pkg/library"
	"readaloud/pkg/storage"
	"readaloud/pkg/tts"
)

func newTestApp(t *testing.T, synth tts.Synthesizer) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := library.Open(filepath.Join(dir, "library_data.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	audioDir := filepath.Join(dir, "outputs")
	audio, err := storage.NewFileStore(audioDir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	app := New(Config{
		Store: store,
		Audio: audio,
		Synth: func(voice string, speed float64) tts.Synthesizer { return synth },
	})
	return app, audioDir
}

func audioFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read audio dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCreateChapterStoresAudioAndRecord(t *testing.T) {
	app, audioDir := newTestApp(t, &tts.MockSynthesizer{})

	content := "hello from the reading room"
	chapter, err := app.CreateChapter(context.Background(), "Chapter One", content, "", 1.0)
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if !strings.HasPrefix(chapter.ID, "chapter_") {
		t.Fatalf("chapter id = %q, want chapter_ prefix", chapter.ID)
	}
	if chapter.AudioFilename == "" {
		t.Fatal("chapter has no audio filename")
	}
	if chapter.WordCount != 5 {
		t.Fatalf("word count = %d, want 5", chapter.WordCount)
	}

	rc, err := app.OpenAudio(context.Background(), chapter.AudioFilename)
	if err != nil {
		t.Fatalf("OpenAudio: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	// The mock echoes input text as audio, so the artifact must round-trip
	// the chapter content exactly.
	if got := string(data); got != content {
		t.Fatalf("audio = %q, want %q", got, content)
	}

	if names := audioFiles(t, audioDir); len(names) != 1 {
		t.Fatalf("audio dir has %d files, want 1", len(names))
	}
}

func TestCreateChapterSynthesisFailureLeavesNothing(t *testing.T) {
	synth := &tts.MockSynthesizer{Fn: func(text string) ([]byte, error) {
		return nil, errors.New("upstream down")
	}}
	app, audioDir := newTestApp(t, synth)

	_, err := app.CreateChapter(context.Background(), "Broken", "some text to read", "", 1.0)
	if err == nil {
		t.Fatal("expected synthesis error")
	}
	if got := app.Chapters(); len(got) != 0 {
		t.Fatalf("library has %d chapters, want 0", len(got))
	}
	if names := audioFiles(t, audioDir); len(names) != 0 {
		t.Fatalf("audio dir has %d files, want 0", len(names))
	}
}

func TestCreateChapterRejectsBlankInput(t *testing.T) {
	app, _ := newTestApp(t, &tts.MockSynthesizer{})

	if _, err := app.CreateChapter(context.Background(), "  ", "text", "", 1.0); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("blank title error = %v, want ErrTitleRequired", err)
	}
	if _, err := app.CreateChapter(context.Background(), "T", "  ", "", 1.0); !errors.Is(err, ErrContentRequired) {
		t.Fatalf("blank content error = %v, want ErrContentRequired", err)
	}
	if _, err := app.CreateChapter(context.Background(), "T", "text", "robot", 1.0); !errors.Is(err, ErrUnsupportedVoice) {
		t.Fatalf("bad voice error = %v, want ErrUnsupportedVoice", err)
	}
}

func TestDeleteChapterRemovesArtifact(t *testing.T) {
	app, audioDir := newTestApp(t, &tts.MockSynthesizer{})

	chapter, err := app.CreateChapter(context.Background(), "Gone Soon", "short text", "", 1.0)
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if err := app.UpdateProgress(chapter.ID, 12.5); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	if err := app.DeleteChapter(context.Background(), chapter.ID); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	if _, _, err := app.Chapter(chapter.ID); !errors.Is(err, library.ErrChapterNotFound) {
		t.Fatalf("Chapter after delete = %v, want ErrChapterNotFound", err)
	}
	if names := audioFiles(t, audioDir); len(names) != 0 {
		t.Fatalf("audio dir has %d files after delete, want 0", len(names))
	}
}

func TestDeleteChapterNotFound(t *testing.T) {
	app, _ := newTestApp(t, &tts.MockSynthesizer{})
	if err := app.DeleteChapter(context.Background(), "chapter_missing"); !errors.Is(err, library.ErrChapterNotFound) {
		t.Fatalf("err = %v, want ErrChapterNotFound", err)
	}
}

func TestChapterReturnsProgress(t *testing.T) {
	app, _ := newTestApp(t, &tts.MockSynthesizer{})

	chapter, err := app.CreateChapter(context.Background(), "With Progress", "listen to this", "", 1.0)
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}

	_, progress, err := app.Chapter(chapter.ID)
	if err != nil {
		t.Fatalf("Chapter: %v", err)
	}
	if progress != nil {
		t.Fatal("expected no progress before first report")
	}

	if err := app.UpdateProgress(chapter.ID, 42); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	_, progress, err = app.Chapter(chapter.ID)
	if err != nil {
		t.Fatalf("Chapter: %v", err)
	}
	if progress == nil || progress.CurrentTime != 42 {
		t.Fatalf("progress = %+v, want current_time 42", progress)
	}
}

func TestSynthesizeAdHoc(t *testing.T) {
	app, audioDir := newTestApp(t, &tts.MockSynthesizer{})

	filename, err := app.Synthesize(context.Background(), "quick preview", "nova", 1.2)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasPrefix(filename, "tts_") || !strings.HasSuffix(filename, ".mp3") {
		t.Fatalf("filename = %q, want tts_*.mp3", filename)
	}
	if names := audioFiles(t, audioDir); len(names) != 1 {
		t.Fatalf("audio dir has %d files, want 1", len(names))
	}
	if got := app.Chapters(); len(got) != 0 {
		t.Fatalf("ad-hoc synthesis created %d chapters, want 0", len(got))
	}
}

func TestImportTextPlain(t *testing.T) {
	text, err := ImportText("notes.txt", strings.NewReader("  line one\nline two  "))
	if err != nil {
		t.Fatalf("ImportText: %v", err)
	}
	if text != "line one\nline two" {
		t.Fatalf("text = %q", text)
	}
}

func TestImportTextEmpty(t *testing.T) {
	if _, err := ImportText("empty.txt", strings.NewReader("   ")); !errors.Is(err, ErrNoTextExtracted) {
		t.Fatalf("err = %v, want ErrNoTextExtracted", err)
	}
}
