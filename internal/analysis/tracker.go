// Package analysis triggers root-cause analyses on the upstream agent and
// tracks their progress.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/store"
	"github.com/atikulmunna/logagent/internal/upstream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultInterval is the polling interval used by the dashboard.
const DefaultInterval = 3 * time.Second

// Backend is the subset of the upstream client the tracker needs.
type Backend interface {
	TriggerAnalysis(ctx context.Context) (upstream.Ack, error)
	Analysis(ctx context.Context) (upstream.Analysis, error)
}

// RunStore persists analysis runs.
type RunStore interface {
	SaveRun(ctx context.Context, run model.AnalysisRun) (model.AnalysisRun, error)
	LatestRun(ctx context.Context) (model.AnalysisRun, error)
}

// Tracker owns at most one active run and a single polling task for it.
type Tracker struct {
	backend  Backend
	runs     RunStore
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// triggerMu serializes Trigger, TriggerIfIdle and Stop so at most one
	// polling task exists.
	triggerMu sync.Mutex

	mu      sync.Mutex
	current *model.AnalysisRun
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Tracker. runs may be nil to keep runs in memory only.
func New(b Backend, runs RunStore, interval time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		backend:  b,
		runs:     runs,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Trigger starts a new analysis and begins polling it. Any previous polling
// task is stopped first, and a run it left running is marked superseded.
func (t *Tracker) Trigger(ctx context.Context) (model.AnalysisRun, error) {
	t.triggerMu.Lock()
	defer t.triggerMu.Unlock()
	return t.trigger(ctx)
}

// TriggerIfIdle returns the run being polled, or triggers a new one when
// none is. started reports whether a new run was triggered.
func (t *Tracker) TriggerIfIdle(ctx context.Context) (run model.AnalysisRun, started bool, err error) {
	t.triggerMu.Lock()
	defer t.triggerMu.Unlock()

	if t.Active() {
		run, err = t.Current(ctx)
		return run, false, err
	}
	run, err = t.trigger(ctx)
	return run, err == nil, err
}

func (t *Tracker) trigger(ctx context.Context) (model.AnalysisRun, error) {
	t.supersede(ctx)

	if _, err := t.backend.TriggerAnalysis(ctx); err != nil {
		return model.AnalysisRun{}, fmt.Errorf("trigger analysis: %w", err)
	}

	now := t.now().UTC()
	run := model.AnalysisRun{
		ID:        uuid.NewString(),
		Status:    model.RunRunning,
		Steps:     PendingSteps(),
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := t.save(ctx, run); err != nil {
		return model.AnalysisRun{}, err
	}
	t.logger.Info("analysis triggered", zap.String("run", run.ID))

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.mu.Lock()
	t.cancel, t.done = cancel, done
	t.mu.Unlock()
	go t.pollLoop(pollCtx, done)

	return run, nil
}

// supersede stops the polling task and closes out its run if the upstream
// never reported it finished.
func (t *Tracker) supersede(ctx context.Context) {
	if !t.stop() {
		return
	}

	t.mu.Lock()
	if t.current == nil || t.current.Status != model.RunRunning {
		t.mu.Unlock()
		return
	}
	run := copyRun(*t.current)
	t.mu.Unlock()

	run.Status = model.RunSuperseded
	run.UpdatedAt = t.now().UTC()
	if err := t.save(ctx, run); err != nil {
		t.logger.Warn("close superseded run", zap.String("run", run.ID), zap.Error(err))
	}
}

// Stop cancels the polling task and waits for it to exit.
func (t *Tracker) Stop() {
	t.triggerMu.Lock()
	defer t.triggerMu.Unlock()
	t.stop()
}

// stop reports whether a polling task had been started.
func (t *Tracker) stop() bool {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Active reports whether a run is being polled.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Current returns the active run, or the latest stored one.
func (t *Tracker) Current(ctx context.Context) (model.AnalysisRun, error) {
	t.mu.Lock()
	if t.current != nil {
		run := copyRun(*t.current)
		t.mu.Unlock()
		return run, nil
	}
	t.mu.Unlock()

	if t.runs == nil {
		return model.AnalysisRun{}, store.ErrNotFound
	}
	return t.runs.LatestRun(ctx)
}

func (t *Tracker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := t.Poll(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					t.logger.Warn("analysis poll failed", zap.Error(err))
				}
				continue
			}
			if run.Status == model.RunCompleted || run.Status == model.RunFailed {
				t.logger.Info("analysis finished",
					zap.String("run", run.ID),
					zap.String("status", run.Status),
				)
				return
			}
		}
	}
}

// Poll fetches the upstream state once and folds it into the current run.
func (t *Tracker) Poll(ctx context.Context) (model.AnalysisRun, error) {
	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return model.AnalysisRun{}, store.ErrNotFound
	}
	run := copyRun(*t.current)
	t.mu.Unlock()

	a, err := t.backend.Analysis(ctx)
	if err != nil {
		return run, fmt.Errorf("poll analysis: %w", err)
	}
	if ctx.Err() != nil {
		return run, ctx.Err()
	}

	run = Apply(run, a)
	run.UpdatedAt = t.now().UTC()
	if err := t.save(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Apply folds an upstream analysis payload into run. Explicit steps from the
// backend win; without them progress is inferred from the text and the run
// is flagged heuristic.
func Apply(run model.AnalysisRun, a upstream.Analysis) model.AnalysisRun {
	if content := a.Content(); content != "" {
		run.Content = content
	}

	switch a.Status {
	case upstream.AnalysisCompleted:
		run.Status = model.RunCompleted
	case upstream.AnalysisError:
		run.Status = model.RunFailed
		if a.Message != "" {
			run.Content = a.Message
		}
	case upstream.AnalysisInProgress:
		run.Status = model.RunRunning
	default:
		// no analysis yet; keep waiting
	}

	switch {
	case len(a.Steps) > 0:
		run.Steps = normalizeSteps(a.Steps)
		run.Heuristic = false
	case run.Status == model.RunCompleted:
		run.Steps = CompletedSteps()
	case run.Status == model.RunRunning && a.Status == upstream.AnalysisInProgress:
		run.Steps = InferSteps(run.Content, run.Steps)
		run.Heuristic = true
	}
	return run
}

func (t *Tracker) save(ctx context.Context, run model.AnalysisRun) error {
	t.mu.Lock()
	c := copyRun(run)
	t.current = &c
	t.mu.Unlock()

	if t.runs == nil {
		return nil
	}
	if _, err := t.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	return nil
}

func copyRun(run model.AnalysisRun) model.AnalysisRun {
	run.Steps = append([]model.Step(nil), run.Steps...)
	return run
}
