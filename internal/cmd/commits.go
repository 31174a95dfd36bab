package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/atikulmunna/logagent/internal/commits"
	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/output"
	"github.com/atikulmunna/logagent/internal/source"
	"github.com/spf13/cobra"
)

var commitsLimit int

var commitsCmd = &cobra.Command{
	Use:   "commits [path-or-url]",
	Short: "Normalize a commit JSON document and print the commits",
	Long: `Normalize commits from the static dataset or the backend's /commits
endpoint into one canonical shape.

Examples:
  logagent commits data/commit.json -k 10
  logagent commits "http://127.0.0.1:8000/commits?use_static=true" --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommits,
}

func init() {
	commitsCmd.Flags().IntVarP(&commitsLimit, "k", "k", 0, "commits to show (default: configured limit)")
	rootCmd.AddCommand(commitsCmd)
}

func runCommits(cmd *cobra.Command, args []string) error {
	fallback := cfg.Commits.Source
	if fallback == "" {
		fallback = cfg.Commits.Static
	}
	uri := fallback
	if len(args) > 0 {
		uri = args[0]
	}
	src, err := source.Open(cmd.Context(), uri, sourceOptions())
	if err != nil {
		return err
	}
	text, err := src.Fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	tag := model.SourceStaticFile
	if _, ok := src.(*source.HTTPSource); ok {
		tag = model.SourceUpstream
	}
	recs, err := commits.ParseJSON([]byte(text), tag, time.Now())
	if err != nil {
		return err
	}

	k := cfg.Commits.Limit
	if commitsLimit > 0 {
		k = commitsLimit
	}
	renderer := output.New(outputFmt, os.Stdout)
	for _, rec := range commits.Head(recs, k) {
		if err := renderer.RenderCommit(rec); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}
