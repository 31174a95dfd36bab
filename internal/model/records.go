package model

// Source tags attached to records so the dashboard can tell where they came from.
const (
	SourceFilteredLogs = "filtered_logs"
	SourceMetricsFile  = "metrics_file"
	SourceStaticFile   = "static_file"
	SourceUpstream     = "upstream"
)

// LogRecord is one parsed two-line log block.
type LogRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	User      string `json:"user"`
	IP        string `json:"ip"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	Latency   int    `json:"latency"` // milliseconds
	Message   string `json:"message"`
	Source    string `json:"source"`
}

// MetricRecord is one parsed metrics sample.
// CPUUsage and MemoryUsage always mirror CPU and Memory.
type MetricRecord struct {
	Timestamp     string  `json:"timestamp"`
	CPU           float64 `json:"cpu"`
	Memory        float64 `json:"memory"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsage   float64 `json:"memory_usage"`
	MemoryUsedMB  int     `json:"memory_used_mb"`
	MemoryTotalMB int     `json:"memory_total_mb"`
	Source        string  `json:"source"`
}

// ChangeSummary counts lines touched by a commit.
type ChangeSummary struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// CommitRecord is the canonical commit shape shared by the static dataset and
// the upstream commits endpoint.
type CommitRecord struct {
	Hash    string        `json:"hash"`
	Message string        `json:"message"`
	Files   []string      `json:"files"`
	Author  string        `json:"author"`
	Date    string        `json:"date"`
	URL     string        `json:"url"`
	Changes ChangeSummary `json:"changes"`
	Source  string        `json:"source"`
}
