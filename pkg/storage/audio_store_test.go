package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFileStore_SaveOpenDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	data := "mp3 bytes"
	if err := store.Save(ctx, "chapter_1.mp3", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("save: %v", err)
	}

	rc, err := store.Open(ctx, "chapter_1.mp3")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != data {
		t.Errorf("content: got %q", got)
	}

	if err := store.Delete(ctx, "chapter_1.mp3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, "chapter_1.mp3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	// Deleting again is a no-op.
	if err := store.Delete(ctx, "chapter_1.mp3"); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestFileStore_SanitizesNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "../../etc/evil.mp3", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Open(ctx, "evil.mp3"); err != nil {
		t.Errorf("sanitized name not used: %v", err)
	}
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Error("blank base path should fail")
	}
}
