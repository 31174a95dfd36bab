// Package tailer follows one growing log or metrics file and emits each
// complete line as it is appended.
package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/atikulmunna/logagent/internal/watcher"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Line is one complete line and the file offset just past its newline.
type Line struct {
	Text   string
	Offset int64
}

// Tailer reads newly appended lines from one file. Rotation is handled by
// reopening on Create; truncation restarts from the beginning. The
// checkpoint is only read, to find the starting offset.
type Tailer struct {
	path      string
	fromStart bool
	out       chan Line
	ckpt      *Checkpoint
	events    <-chan watcher.Event
	logger    *zap.Logger

	file    *os.File
	offset  int64
	partial string // bytes after the last newline
}

// New creates a Tailer for path driven by watcher events. Without a saved
// position it starts at the end of the file unless fromStart is set.
func New(path string, events <-chan watcher.Event, ckpt *Checkpoint, fromStart bool, logger *zap.Logger) *Tailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tailer{
		path:      path,
		fromStart: fromStart,
		out:       make(chan Line, 512),
		ckpt:      ckpt,
		events:    events,
		logger:    logger,
	}
}

// Lines returns the channel where complete lines are sent. It is closed when
// Start returns.
func (t *Tailer) Lines() <-chan Line {
	return t.out
}

// Start opens the file, emits anything past the saved position, then follows
// watcher events. Blocks until context is cancelled.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)
	defer t.closeFile()

	t.open(ctx, true)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.handleEvent(ctx, ev)
		}
	}
}

// handleEvent dispatches watcher events to the appropriate handler.
func (t *Tailer) handleEvent(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		// New file appeared, possibly after rotation.
		t.closeFile()
		t.offset, t.partial = 0, ""
		t.open(ctx, false)

	case ev.Op&fsnotify.Write != 0:
		if t.file == nil {
			t.open(ctx, false)
			return
		}
		t.readNewLines(ctx)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		// Wait for the Create of the replacement.
		t.closeFile()
	}
}

// open opens the file. On the first open the checkpointed position (or the
// end of file) is used; later opens read from the current offset.
func (t *Tailer) open(ctx context.Context, initial bool) {
	f, err := os.Open(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("cannot open file", zap.String("path", t.path), zap.Error(err))
		}
		return
	}
	t.file = f

	if initial {
		if pos, ok := t.ckpt.Get(t.path); ok {
			t.offset = pos.Offset
		} else if !t.fromStart {
			t.offset, _ = f.Seek(0, io.SeekEnd)
		}
	}
	t.readNewLines(ctx)
}

// readNewLines reads from the last offset to EOF and emits complete lines.
func (t *Tailer) readNewLines(ctx context.Context) {
	if info, err := t.file.Stat(); err == nil && info.Size() < t.offset {
		t.logger.Info("file truncated, restarting", zap.String("path", t.path))
		t.offset, t.partial = 0, ""
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		t.logger.Warn("seek failed", zap.String("path", t.path), zap.Error(err))
		return
	}

	r := bufio.NewReader(t.file)
	for {
		chunk, err := r.ReadString('\n')
		t.offset += int64(len(chunk))
		if strings.HasSuffix(chunk, "\n") {
			line := Line{Text: t.partial + strings.TrimSuffix(chunk, "\n"), Offset: t.offset}
			t.partial = ""
			select {
			case t.out <- line:
			case <-ctx.Done():
				return
			}
		} else {
			// Incomplete last line; finished on the next write.
			t.partial += chunk
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("read error", zap.String("path", t.path), zap.Error(err))
			}
			break
		}
	}
}

func (t *Tailer) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}
