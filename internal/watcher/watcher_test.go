package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type change struct {
	path  string
	event EventType
}

func startWatcher(t *testing.T) (*FileWatcher, chan change) {
	t.Helper()
	w, err := New(nil, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	changes := make(chan change, 8)
	w.OnChange(func(path string, event EventType) {
		changes <- change{path: path, event: event}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return w, changes
}

func waitChange(t *testing.T, changes chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return change{}
	}
}

func TestFileWatcher_ModifyAndDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t)
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := waitChange(t, changes)
	if c.event != EventModify || c.path != path {
		t.Fatalf("got %v on %s, want modify on %s", c.event, c.path, path)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	c = waitChange(t, changes)
	if c.event != EventDelete {
		t.Fatalf("got %v, want delete", c.event)
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t)
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %v on %s", c.event, c.path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFileWatcher_Clear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, changes := startWatcher(t)
	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	w.Clear()

	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %v after Clear", c.event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventType_String(t *testing.T) {
	if EventModify.String() != "modify" || EventDelete.String() != "delete" {
		t.Fatalf("unexpected names %q %q", EventModify, EventDelete)
	}
}
