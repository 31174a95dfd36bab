// Package collector keeps the live log, metric and commit windows current by
// polling their sources on independent tasks.
package collector

import (
	"context"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/source"
	"go.uber.org/zap"
)

// Config selects the sources and window sizes. A nil source disables its
// stream.
type Config struct {
	Logs    source.Source
	Metrics source.Source
	Commits source.Source

	LogWindow    int
	MetricWindow int
	CommitLimit  int

	LogInterval    time.Duration
	MetricInterval time.Duration
	CommitInterval time.Duration
}

// Collector owns one Task per configured stream.
type Collector struct {
	logs    *Stream[model.LogRecord]
	metrics *Stream[model.MetricRecord]
	commits *Stream[model.CommitRecord]
	tasks   []*Task
	logger  *zap.Logger
}

// New builds the streams. Updates are published to out.
func New(cfg Config, out chan<- model.Update, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger}

	if cfg.Logs != nil {
		c.logs = NewLogStream(cfg.Logs, cfg.LogWindow, logger)
		c.tasks = append(c.tasks, NewTask(c.logs, cfg.LogInterval, out, logger))
	}
	if cfg.Metrics != nil {
		c.metrics = NewMetricStream(cfg.Metrics, cfg.MetricWindow)
		c.tasks = append(c.tasks, NewTask(c.metrics, cfg.MetricInterval, out, logger))
	}
	if cfg.Commits != nil {
		c.commits = NewCommitStream(cfg.Commits, cfg.CommitLimit)
		c.tasks = append(c.tasks, NewTask(c.commits, cfg.CommitInterval, out, logger))
	}
	return c
}

// Start launches every task.
func (c *Collector) Start(ctx context.Context) {
	for _, t := range c.tasks {
		c.logger.Info("starting stream", zap.String("stream", string(t.Name())))
		t.Start(ctx)
	}
}

// Stop stops every task and waits for them.
func (c *Collector) Stop() {
	for _, t := range c.tasks {
		t.Stop()
	}
}

// Refresh reloads the named streams now, or every stream when none is named.
func (c *Collector) Refresh(ctx context.Context, names ...model.Stream) {
	for _, t := range c.tasks {
		if len(names) == 0 || contains(names, t.Name()) {
			t.Refresh(ctx)
		}
	}
}

// Sources reports how many streams are configured.
func (c *Collector) Sources() int { return len(c.tasks) }

// Tasks returns the stream tasks.
func (c *Collector) Tasks() []*Task { return c.tasks }

// Logs returns the current log window and the last refresh error.
func (c *Collector) Logs() ([]model.LogRecord, string) {
	if c.logs == nil {
		return []model.LogRecord{}, "logs stream not configured"
	}
	return c.logs.Snapshot()
}

// Metrics returns the current metric window and the last refresh error.
func (c *Collector) Metrics() ([]model.MetricRecord, string) {
	if c.metrics == nil {
		return []model.MetricRecord{}, "metrics stream not configured"
	}
	return c.metrics.Snapshot()
}

// Commits returns the current commit window and the last refresh error.
func (c *Collector) Commits() ([]model.CommitRecord, string) {
	if c.commits == nil {
		return []model.CommitRecord{}, "commits stream not configured"
	}
	return c.commits.Snapshot()
}

// FileSources lists the file-backed sources, for the watcher.
func (c *Collector) FileSources() map[model.Stream]*source.FileSource {
	out := make(map[model.Stream]*source.FileSource)
	if c.logs != nil {
		if fs, ok := c.logs.Source().(*source.FileSource); ok {
			out[model.StreamLogs] = fs
		}
	}
	if c.metrics != nil {
		if fs, ok := c.metrics.Source().(*source.FileSource); ok {
			out[model.StreamMetrics] = fs
		}
	}
	if c.commits != nil {
		if fs, ok := c.commits.Source().(*source.FileSource); ok {
			out[model.StreamCommits] = fs
		}
	}
	return out
}

func contains(names []model.Stream, n model.Stream) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}
