package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/atikulmunna/logagent/internal/aggregator"
	"github.com/atikulmunna/logagent/internal/analysis"
	"github.com/atikulmunna/logagent/internal/collector"
	"github.com/atikulmunna/logagent/internal/detect"
	"github.com/atikulmunna/logagent/internal/hub"
	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/server"
	"github.com/atikulmunna/logagent/internal/source"
	"github.com/atikulmunna/logagent/internal/store"
	"github.com/atikulmunna/logagent/internal/upstream"
	"github.com/atikulmunna/logagent/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect streams and serve the live dashboard",
	Long: `Poll the configured log, metrics and commit sources, detect incidents,
and serve the dashboard API and WebSocket.

Examples:
  logagent serve
  logagent serve --port 9090
  LOGAGENT_LOGS_SOURCE=cloudwatch://app-logs logagent serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "dashboard port (default: server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if servePort != "" {
		cfg.Server.Port = servePort
	}

	// --- Storage ---
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	// --- Streams ---
	updates := make(chan model.Update, 64)
	coll := collector.New(collector.Config{
		Logs:           openStream(ctx, logger, "logs", cfg.Logs.Source),
		Metrics:        openStream(ctx, logger, "metrics", cfg.Metrics.Source),
		Commits:        openStream(ctx, logger, "commits", commitsURI()),
		LogWindow:      cfg.Logs.Window,
		MetricWindow:   cfg.Metrics.Window,
		CommitLimit:    cfg.Commits.Limit,
		LogInterval:    cfg.Logs.Interval,
		MetricInterval: cfg.Metrics.Interval,
		CommitInterval: cfg.Commits.Interval,
	}, updates, logger)

	h := hub.New(updates, logger)
	agg := aggregator.New(h.Subscribe(), h.Dropped, coll.Sources)

	// --- Upstream and analysis ---
	var (
		client  *upstream.Client
		tracker *analysis.Tracker
	)
	if cfg.Upstream.URL != "" {
		client = upstream.New(cfg.Upstream.URL, upstream.WithTimeout(cfg.Upstream.Timeout))
		tracker = analysis.New(client, st, cfg.Upstream.AnalysisPolling, logger)
		defer tracker.Stop()
	}

	det := detect.New(detect.Rules{
		CPUThreshold:    cfg.Detect.CPUThreshold,
		MemoryThreshold: cfg.Detect.MemoryThreshold,
		Keywords:        cfg.Detect.Keywords,
	})
	incidents := h.Subscribe()

	go h.Start(ctx)
	go agg.Start(ctx)
	go det.Watch(ctx, incidents, func(ctx context.Context, inc model.Incident) {
		if cfg.Detect.AutoAnalyze && tracker != nil {
			if run, ok := autoAnalyze(ctx, tracker, logger); ok {
				inc.AnalysisID = run.ID
			}
		}
		saved, err := st.SaveIncident(ctx, inc)
		if err != nil {
			logger.Error("store incident", zap.Error(err))
			return
		}
		logger.Info("incident detected",
			zap.String("id", saved.ID),
			zap.String("kind", saved.Kind),
			zap.String("reason", saved.Reason),
			zap.String("record_ts", saved.Timestamp),
		)
	})

	if client != nil {
		go upstream.WatchStatus(ctx, client, cfg.Upstream.StatusInterval,
			func(prev, cur upstream.Status) {
				logger.Info("generator state changed", zap.Bool("generating", cur.IsGenerating))
				if !cur.IsGenerating && cfg.Detect.AutoAnalyze {
					autoAnalyze(ctx, tracker, logger)
				}
			},
			func(err error) { logger.Debug("status poll failed", zap.Error(err)) },
		)
	}

	// --- File watching ---
	if cfg.Watch {
		patterns := make(map[model.Stream]string)
		for stream, fs := range coll.FileSources() {
			patterns[stream] = fs.Pattern()
		}
		if len(patterns) > 0 {
			w, err := watcher.New(patterns, logger)
			if err != nil {
				logger.Warn("file watching disabled", zap.Error(err))
			} else {
				go w.Start(ctx)
				go watcher.Coalesce(ctx, w.Events, watcher.DefaultDelay, func(s model.Stream) {
					coll.Refresh(ctx, s)
				})
			}
		}
	}

	coll.Start(ctx)
	defer coll.Stop()

	fmt.Fprintf(os.Stderr, "logagent dashboard at http://localhost:%s (%d stream(s))\n", cfg.Server.Port, coll.Sources())

	srv := server.New(server.Deps{
		Hub:           h,
		Aggregator:    agg,
		Data:          coll,
		Incidents:     st,
		Upstream:      upstreamDep(client),
		Analysis:      analyzerDep(tracker),
		StaticCommits: cfg.Commits.Static,
		Logger:        logger,
	}, cfg.Server.Port)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("dashboard server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

// openStream opens a stream source. A stream whose source cannot be opened
// is disabled rather than failing the whole server.
func openStream(ctx context.Context, logger *zap.Logger, name, uri string) source.Source {
	src, err := source.Open(ctx, uri, sourceOptions())
	if err != nil {
		if !errors.Is(err, source.ErrEmptyURI) {
			logger.Warn("stream disabled", zap.String("stream", name), zap.Error(err))
		}
		return nil
	}
	return src
}

// commitsURI picks the commit source: an explicit source, the backend's
// /commits endpoint for a configured repo, or the static dataset.
func commitsURI() string {
	switch {
	case cfg.Commits.Source != "":
		return cfg.Commits.Source
	case cfg.Commits.Repo != "" && cfg.Upstream.URL != "":
		q := url.Values{}
		q.Set("repo", cfg.Commits.Repo)
		q.Set("k", strconv.Itoa(cfg.Commits.Limit))
		return strings.TrimRight(cfg.Upstream.URL, "/") + "/commits?" + q.Encode()
	default:
		return cfg.Commits.Static
	}
}

// autoAnalyze triggers a run unless one is already in progress.
func autoAnalyze(ctx context.Context, tracker *analysis.Tracker, logger *zap.Logger) (model.AnalysisRun, bool) {
	run, started, err := tracker.TriggerIfIdle(ctx)
	if err != nil {
		logger.Warn("auto analysis failed", zap.Error(err))
		return model.AnalysisRun{}, false
	}
	if started {
		logger.Info("auto analysis started", zap.String("run", run.ID))
	}
	return run, true
}

// upstreamDep and analyzerDep keep nil pointers from becoming non-nil
// interface values.
func upstreamDep(c *upstream.Client) server.Upstream {
	if c == nil {
		return nil
	}
	return c
}

func analyzerDep(t *analysis.Tracker) server.Analyzer {
	if t == nil {
		return nil
	}
	return t
}
