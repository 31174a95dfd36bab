package analysis

import (
	"strings"

	"github.com/atikulmunna/logagent/internal/model"
)

// Step names, in the order the agent works through them.
const (
	StepLogs    = "logs"
	StepMetrics = "metrics"
	StepCommits = "commits"
	StepSummary = "summary"
)

// Step states.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
)

var stepOrder = []string{StepLogs, StepMetrics, StepCommits, StepSummary}

// evidence lists the substrings taken to mean a step's tool has reported.
// The summary step has none; it completes with the run.
var evidence = map[string][]string{
	StepLogs:    {"logs", "log analysis", "error"},
	StepMetrics: {"metrics", "cpu", "memory", "performance"},
	StepCommits: {"commit", "code", "repository"},
}

// PendingSteps returns every step in the pending state.
func PendingSteps() []model.Step {
	out := make([]model.Step, len(stepOrder))
	for i, name := range stepOrder {
		out[i] = model.Step{Name: name, Status: StepPending}
	}
	return out
}

// CompletedSteps returns every step in the completed state.
func CompletedSteps() []model.Step {
	out := PendingSteps()
	for i := range out {
		out[i].Status = StepCompleted
	}
	return out
}

// InferSteps guesses step progress from partial analysis text. A step that
// was already completed in prev stays completed. The first step that is not
// completed is marked running.
func InferSteps(content string, prev []model.Step) []model.Step {
	done := make(map[string]bool, len(prev))
	for _, s := range prev {
		if s.Status == StepCompleted {
			done[s.Name] = true
		}
	}

	text := strings.ToLower(content)
	for name, words := range evidence {
		for _, w := range words {
			if strings.Contains(text, w) {
				done[name] = true
				break
			}
		}
	}

	out := PendingSteps()
	running := false
	for i := range out {
		switch {
		case done[out[i].Name]:
			out[i].Status = StepCompleted
		case !running:
			out[i].Status = StepRunning
			running = true
		}
	}
	return out
}

// normalizeSteps copies steps reported by the backend, filling blank states.
func normalizeSteps(in []model.Step) []model.Step {
	out := make([]model.Step, 0, len(in))
	for _, s := range in {
		if s.Status == "" {
			s.Status = StepPending
		}
		out = append(out, s)
	}
	return out
}
