package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/output"
	"github.com/atikulmunna/logagent/internal/parser"
	"github.com/atikulmunna/logagent/internal/tailer"
	"github.com/atikulmunna/logagent/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	followFromStart bool
	followState     string
)

var followCmd = &cobra.Command{
	Use:   "follow logs|metrics [path]",
	Short: "Follow a log or metrics file and print records as they are written",
	Long: `Follow one file in real time, pairing log lines into records as they
arrive. The read position is checkpointed so a restart resumes where it left
off.

Examples:
  logagent follow logs data/filteredLogs.txt
  logagent follow metrics --from-start --output json`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"logs", "metrics"},
	RunE:      runFollow,
}

func init() {
	followCmd.Flags().BoolVar(&followFromStart, "from-start", false, "read the whole file before following")
	followCmd.Flags().StringVar(&followState, "state", ".logagent-state.json", "checkpoint file (empty to disable)")
	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := model.Stream(strings.ToLower(args[0]))
	var path string
	switch stream {
	case model.StreamLogs:
		path = cfg.Logs.Source
	case model.StreamMetrics:
		path = cfg.Metrics.Source
	default:
		return fmt.Errorf("unknown stream %q: want logs or metrics", args[0])
	}
	if len(args) > 1 {
		path = args[1]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	logger := cliLogger()
	defer logger.Sync()

	w, err := watcher.New(map[model.Stream]string{stream: abs}, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	ckpt, err := tailer.NewCheckpoint(followState)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	t := tailer.New(abs, w.Events, ckpt, followFromStart, logger)

	fmt.Fprintf(os.Stderr, "following %s (%s)\n", abs, stream)

	go w.Start(ctx)
	go t.Start(ctx)

	renderer := output.New(outputFmt, os.Stdout)
	levelSet := make(map[string]bool)
	if levelFilter != "" {
		for _, l := range strings.Split(levelFilter, ",") {
			levelSet[strings.ToUpper(strings.TrimSpace(l))] = true
		}
	}

	if stream == model.StreamMetrics {
		tailer.Consume(t.Lines(), ckpt, abs, tailer.DefaultSaveInterval, func(line string) string {
			if rec, ok := parser.ParseMetricStreamLine(line, ""); ok {
				if err := renderer.RenderMetric(rec); err != nil {
					logger.Warn("render error", zap.Error(err))
				}
			}
			return ""
		}, logger)
		return nil
	}

	asm := parser.NewLogAssembler(parser.NewLogParser(logger), "")
	if pos, ok := ckpt.Get(abs); ok {
		asm.Restore(pos.Pending)
	}
	tailer.Consume(t.Lines(), ckpt, abs, tailer.DefaultSaveInterval, func(line string) string {
		if rec, ok := asm.Feed(line); ok && shouldShow(rec, levelSet) {
			if err := renderer.RenderLog(rec); err != nil {
				logger.Warn("render error", zap.Error(err))
			}
		}
		header, _ := asm.Pending()
		return header
	}, logger)
	return nil
}
