package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/watcher"
)

func startTailer(t *testing.T, path string, ckpt *Checkpoint, fromStart bool) (*Tailer, context.CancelFunc) {
	t.Helper()
	w, err := watcher.New(map[model.Stream]string{model.StreamLogs: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tail := New(path, w.Events, ckpt, fromStart, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	go tail.Start(ctx)
	return tail, cancel
}

func nextLine(t *testing.T, tail *Tailer) Line {
	t.Helper()
	select {
	case line := <-tail.Lines():
		return line
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for line")
		return Line{}
	}
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatal(err)
	}
}

func TestTailNewLines(t *testing.T) {
	// Create a temp log file with some pre-existing content.
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filteredLogs.txt")
	if err := os.WriteFile(logPath, []byte("existing line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ckpt, err := NewCheckpoint("")
	if err != nil {
		t.Fatal(err)
	}
	tail, cancel := startTailer(t, logPath, ckpt, false)
	defer cancel()

	// Give the tailer a moment to initialize and seek to end.
	time.Sleep(300 * time.Millisecond)

	appendTo(t, logPath, "hello from test\n")
	if got := nextLine(t, tail).Text; got != "hello from test" {
		t.Errorf("expected 'hello from test', got %q", got)
	}

	// A line written in two parts is emitted once complete.
	appendTo(t, logPath, "split ")
	appendTo(t, logPath, "line\n")
	if got := nextLine(t, tail).Text; got != "split line" {
		t.Errorf("expected 'split line', got %q", got)
	}

	// Cancel and allow goroutines to stop before TempDir cleanup.
	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestTailFromStart(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "metrics.txt")
	if err := os.WriteFile(logPath, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ckpt, _ := NewCheckpoint("")
	tail, cancel := startTailer(t, logPath, ckpt, true)
	defer cancel()

	if got := nextLine(t, tail); got != (Line{Text: "one", Offset: 4}) {
		t.Errorf("expected 'one' at offset 4, got %+v", got)
	}
	if got := nextLine(t, tail); got != (Line{Text: "two", Offset: 8}) {
		t.Errorf("expected 'two' at offset 8, got %+v", got)
	}
}

func TestTailResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filteredLogs.txt")
	if err := os.WriteFile(logPath, []byte("seen\nunseen\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ckpt, _ := NewCheckpoint("")
	ckpt.Set(logPath, Position{Offset: 5})
	tail, cancel := startTailer(t, logPath, ckpt, false)
	defer cancel()

	if got := nextLine(t, tail).Text; got != "unseen" {
		t.Errorf("expected 'unseen', got %q", got)
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.json")

	// Create and save checkpoint.
	c1, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	c1.Set("/data/filteredLogs.txt", Position{Offset: 42, Pending: "[t] INFO - x"})
	c1.Set("/data/metrics.txt", Position{Offset: 1024})
	if err := c1.Save(); err != nil {
		t.Fatal(err)
	}

	// Load into a new checkpoint.
	c2, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}

	if pos, ok := c2.Get("/data/filteredLogs.txt"); !ok || pos.Offset != 42 || pos.Pending != "[t] INFO - x" {
		t.Errorf("unexpected position %+v", pos)
	}
	if pos, ok := c2.Get("/data/metrics.txt"); !ok || pos.Offset != 1024 {
		t.Errorf("expected offset 1024, got %+v", pos)
	}
	if _, ok := c2.Get("/nonexistent"); ok {
		t.Error("expected no entry for unknown path")
	}
}

func TestCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCheckpoint(path); err == nil {
		t.Error("expected error for corrupt checkpoint")
	}
}
