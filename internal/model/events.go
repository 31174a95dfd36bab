package model

import "time"

// Stream names one independent data feed of the dashboard.
type Stream string

const (
	StreamLogs    Stream = "logs"
	StreamMetrics Stream = "metrics"
	StreamCommits Stream = "commits"
)

// Update is published every time a stream finishes a refresh.
// Exactly one of Logs, Metrics or Commits is populated, matching Stream.
type Update struct {
	Stream    Stream         `json:"stream"`
	Logs      []LogRecord    `json:"logs,omitempty"`
	Metrics   []MetricRecord `json:"metrics,omitempty"`
	Commits   []CommitRecord `json:"commits,omitempty"`
	Err       string         `json:"error,omitempty"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Incident kinds.
const (
	IncidentLog    = "log"
	IncidentMetric = "metric"
)

// Incident is a log or metric sample that crossed a detection rule.
type Incident struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason"`
	Timestamp  string    `json:"timestamp"` // timestamp of the offending record
	DetectedAt time.Time `json:"detected_at"`
	AnalysisID string    `json:"analysis_id,omitempty"`
}

// Analysis run states.
const (
	RunPending    = "pending"
	RunRunning    = "running"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunSuperseded = "superseded"
)

// Step is one stage of a root-cause analysis run.
type Step struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// AnalysisRun tracks one upstream root-cause analysis.
type AnalysisRun struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Steps     []Step    `json:"steps"`
	Heuristic bool      `json:"heuristic"` // steps inferred from content text
	Content   string    `json:"content"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
