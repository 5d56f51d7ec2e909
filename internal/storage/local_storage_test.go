package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageSaveExactKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	key := "persona/nova/key/nova:abc/variant/01X.png"
	got, err := store.Save(context.Background(), []byte("payload"), SaveOptions{Key: key})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got != key {
		t.Errorf("returned key = %q, want %q", got, key)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("stored bytes = %q", data)
	}
}

func TestLocalStorageSkipIfExists(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocalStorage(dir)
	ctx := context.Background()

	opts := SaveOptions{Key: "a/b.png", SkipIfExists: true}
	if _, err := store.Save(ctx, []byte("first"), opts); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, []byte("second"), opts); err != nil {
		t.Fatalf("save again: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "a", "b.png"))
	if string(data) != "first" {
		t.Errorf("existing object overwritten: %q", data)
	}
}

func TestLocalStorageDatedFallback(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocalStorage(dir)

	key, err := store.Save(context.Background(), []byte("x"), SaveOptions{
		Category:  "Misc Stuff",
		Extension: "png",
		BaseName:  "test asset",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(key, "miscstuff/") || !strings.HasSuffix(key, "/test-asset.png") {
		t.Errorf("unexpected dated key %q", key)
	}
}

func TestLocalStorageRejectsEmptyPayload(t *testing.T) {
	store, _ := NewLocalStorage(t.TempDir())
	if _, err := store.Save(context.Background(), nil, SaveOptions{Key: "a.png"}); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestCleanObjectKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"persona/nova/v.png", "persona/nova/v.png"},
		{"/leading/slash.png", "leading/slash.png"},
		{"a//b.png", "a/b.png"},
		{"../escape.png", ""},
		{"a/../../escape.png", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := cleanObjectKey(tt.in); got != tt.want {
			t.Errorf("cleanObjectKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
