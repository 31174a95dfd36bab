package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event is a change to a file backing one stream.
type Event struct {
	Stream model.Stream
	Path   string
	Op     fsnotify.Op
}

// Watcher monitors the directories holding each stream's files and reports
// changes to files matching the stream's pattern.
type Watcher struct {
	fsw      *fsnotify.Watcher
	Events   chan Event
	patterns map[model.Stream]string
	dirs     []string
	logger   *zap.Logger
}

// New creates a Watcher for the given per-stream glob patterns. The parent
// directory of the pattern and of every current match is watched, so files
// that are replaced or created later are still seen.
func New(patterns map[model.Stream]string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		Events:   make(chan Event, 256),
		patterns: make(map[model.Stream]string, len(patterns)),
		logger:   logger,
	}

	dirs := make(map[string]struct{})
	for stream, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			logger.Warn("cannot resolve pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		w.patterns[stream] = filepath.ToSlash(abs)

		if !strings.ContainsAny(pattern, "*?[{") {
			dirs[filepath.Dir(abs)] = struct{}{}
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))
		dirs[filepath.FromSlash(base)] = struct{}{}
		matches, err := expandGlob(abs)
		if err != nil {
			logger.Warn("failed to expand pattern", zap.String("pattern", pattern), zap.Error(err))
		}
		for _, m := range matches {
			dirs[filepath.Dir(m)] = struct{}{}
		}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs = append(w.dirs, dir)
	}
	sort.Strings(w.dirs)

	return w, nil
}

// Start begins listening for file events. It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Forward relevant events (write, create, remove, rename).
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			stream, ok := w.match(ev.Name)
			if !ok {
				continue
			}
			select {
			case w.Events <- Event{Stream: stream, Path: ev.Name, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Dirs returns the directories currently being watched.
func (w *Watcher) Dirs() []string {
	return w.dirs
}

func (w *Watcher) match(path string) (model.Stream, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	abs = filepath.ToSlash(abs)
	for stream, pattern := range w.patterns {
		if abs == pattern {
			return stream, true
		}
		if ok, _ := doublestar.Match(pattern, abs); ok {
			return stream, true
		}
	}
	return "", false
}

// DefaultDelay is the quiet period Coalesce waits for.
const DefaultDelay = 200 * time.Millisecond

// Coalesce calls fn once per stream after its events have been quiet for
// delay. It returns when events is closed or ctx is cancelled.
func Coalesce(ctx context.Context, events <-chan Event, delay time.Duration, fn func(model.Stream)) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	pending := make(map[model.Stream]time.Time)
	ticker := time.NewTicker(delay / 2)
	defer ticker.Stop()

	flush := func(force bool) {
		now := time.Now()
		for stream, last := range pending {
			if force || now.Sub(last) >= delay {
				delete(pending, stream)
				fn(stream)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				flush(true)
				return
			}
			pending[ev.Stream] = time.Now()
		case <-ticker.C:
			flush(false)
		}
	}
}

// expandGlob resolves a glob pattern to matching file paths.
// Supports recursive patterns like /var/log/**/*.log via doublestar.
func expandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}
