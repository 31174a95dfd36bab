package collector

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"go.uber.org/zap"
)

// DefaultInterval is used when a task is given a non-positive interval.
const DefaultInterval = 5 * time.Second

// Task refreshes one stream on a fixed interval. Stop cancels the loop and
// waits for it; a fetch that finishes after Stop is discarded.
type Task struct {
	r        Refresher
	interval time.Duration
	out      chan<- model.Update
	logger   *zap.Logger

	runMu sync.Mutex // one writer per stream

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	kick    chan struct{}
	running bool
}

// NewTask returns a stopped task. out may be nil when nobody listens.
func NewTask(r Refresher, interval time.Duration, out chan<- model.Update, logger *zap.Logger) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Task{
		r:        r,
		interval: interval,
		out:      out,
		logger:   logger.With(zap.String("stream", string(r.Name()))),
		kick:     make(chan struct{}, 1),
	}
}

func (t *Task) Name() model.Stream { return t.r.Name() }

// Start launches the refresh loop. It loads once immediately, then on every
// tick. Starting a running task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.gen++
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	go t.loop(ctx, t.done)
}

// Stop cancels the loop and blocks until it has exited.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.gen++
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Kick asks a running loop to refresh now without waiting for the next tick.
func (t *Task) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh(ctx)
		case <-t.kick:
			t.Refresh(ctx)
		}
	}
}

// Refresh fetches, applies and publishes one update. It reports false when
// the result was dropped because the task was stopped or restarted meanwhile.
func (t *Task) Refresh(ctx context.Context) bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	gen := t.generation()
	u := t.r.Fetch(ctx)
	if ctx.Err() != nil || t.generation() != gen {
		t.logger.Debug("discarding stale refresh")
		return false
	}

	t.r.Apply(u)
	if u.Err != "" {
		t.logger.Warn("refresh failed", zap.String("error", u.Err))
	}
	if t.out != nil {
		select {
		case t.out <- u:
		case <-ctx.Done():
		}
	}
	return true
}

func (t *Task) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
