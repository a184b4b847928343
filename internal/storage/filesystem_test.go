package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestImageKey(t *testing.T) {
	cases := map[string]string{
		"abc-123":          "images/7/abc-123.png",
		"blob/key:with?x":  "images/7/blob_key_with_x.png",
		"../../etc/passwd": "images/7/etc_passwd.png",
		"":                 "images/7/image.png",
	}
	for in, want := range cases {
		if got := ImageKey(7, in); got != want {
			t.Fatalf("ImageKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileStoreWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	key, err := store.Write(ctx, "./images/1/a.png", []byte("png"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "images/1/a.png" {
		t.Fatalf("unexpected key %q", key)
	}
	if _, err := os.Stat(filepath.Join(dir, "images", "1", "a.png")); err != nil {
		t.Fatalf("file missing: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil || string(data) != "png" {
		t.Fatalf("unexpected read %q %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "images", "1"))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.png", []byte("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := store.Read(context.Background(), "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
