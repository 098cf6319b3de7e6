package msgstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestLocalFileStore_PutAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalFileStore(dir)
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	ctx := context.Background()
	data := []byte(`{"senderAddress":"DoNotReply@example.com"}`)

	if err := store.Put(ctx, "op-001", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "op-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	if _, err := os.Stat(filepath.Join(dir, "op-001.json")); err != nil {
		t.Errorf("expected op-001.json on disk: %v", err)
	}
}

func TestLocalFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalFileStore(dir)
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	if err := store.Put(context.Background(), "op-tmp", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "op-tmp.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only op-tmp.json, got %v", names)
	}
}

func TestLocalFileStore_GetNotFound(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	_, err = store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get non-existent: got err=%v, want ErrNotFound", err)
	}
}

func TestLocalFileStore_RejectsPathLikeIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalFileStore(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden"} {
		t.Run(id, func(t *testing.T) {
			if err := store.Put(context.Background(), id, []byte("{}")); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Put(%q): got err=%v, want ErrInvalidID", id, err)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "escape.json")); !os.IsNotExist(err) {
		t.Error("file escaped the archive directory")
	}
}

func TestLocalFileStore_ConcurrentPut(t *testing.T) {
	store, err := NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put(ctx, "op-same", []byte(`{"n":1}`)); err != nil {
				t.Errorf("concurrent Put: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "op-same")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"n":1}` {
		t.Errorf("Get = %q", got)
	}
}
