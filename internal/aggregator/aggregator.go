package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
)

// rateWindow is the span used for the records-per-second figure.
const rateWindow = 5 * time.Second

// StreamStats summarises the last refresh of one stream.
type StreamStats struct {
	Refreshes   int64     `json:"refreshes"`
	Records     int       `json:"records"`
	LastRefresh time.Time `json:"last_refresh"`
	LastError   string    `json:"last_error,omitempty"`
}

// Stats holds a point-in-time snapshot of aggregated dashboard metrics.
type Stats struct {
	Uptime         string                 `json:"uptime"`
	TotalUpdates   int64                  `json:"total_updates"`
	RPS            float64                `json:"rps"`
	LevelCounts    map[string]int64       `json:"level_counts"`
	ErrorRate      float64                `json:"error_rate"`
	AvgCPU         float64                `json:"avg_cpu"`
	PeakCPU        float64                `json:"peak_cpu"`
	AvgMemory      float64                `json:"avg_memory"`
	PeakMemory     float64                `json:"peak_memory"`
	Streams        map[string]StreamStats `json:"streams"`
	DroppedUpdates int64                  `json:"dropped_updates"`
	Sources        int                    `json:"sources"`
}

type sample struct {
	at      time.Time
	records int
}

// Aggregator subscribes to the Hub and derives dashboard metrics from the
// current log and metric windows.
type Aggregator struct {
	mu           sync.RWMutex
	startTime    time.Time
	totalUpdates int64
	levelCounts  map[string]int64
	errorRate    float64
	avgCPU       float64
	peakCPU      float64
	avgMem       float64
	peakMem      float64
	streams      map[model.Stream]StreamStats
	window       []sample // arrivals for the RPS calculation
	dropped      func() int64
	sourceCount  func() int
	updates      <-chan model.Update
}

// New creates an Aggregator that reads from the given Hub subscriber channel.
// droppedFn and sourceCountFn provide live values from the Hub and collector.
func New(updates <-chan model.Update, droppedFn func() int64, sourceCountFn func() int) *Aggregator {
	return &Aggregator{
		startTime:   time.Now(),
		levelCounts: make(map[string]int64),
		streams:     make(map[model.Stream]StreamStats),
		dropped:     droppedFn,
		sourceCount: sourceCountFn,
		updates:     updates,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64, len(a.levelCounts))
	for k, v := range a.levelCounts {
		counts[k] = v
	}
	streams := make(map[string]StreamStats, len(a.streams))
	for k, v := range a.streams {
		streams[string(k)] = v
	}

	cutoff := time.Now().Add(-rateWindow)
	var recent int
	for _, s := range a.window {
		if s.at.After(cutoff) {
			recent += s.records
		}
	}

	return Stats{
		Uptime:         time.Since(a.startTime).Truncate(time.Second).String(),
		TotalUpdates:   a.totalUpdates,
		RPS:            float64(recent) / rateWindow.Seconds(),
		LevelCounts:    counts,
		ErrorRate:      a.errorRate,
		AvgCPU:         a.avgCPU,
		PeakCPU:        a.peakCPU,
		AvgMemory:      a.avgMem,
		PeakMemory:     a.peakMem,
		Streams:        streams,
		DroppedUpdates: a.dropped(),
		Sources:        a.sourceCount(),
	}
}

// Start begins consuming updates. Blocks until context is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	// Periodically prune the rate window.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-a.updates:
			if !ok {
				return
			}
			a.record(u)
		case <-ticker.C:
			a.prune()
		}
	}
}

// record folds one update into the metrics. Window-derived figures are
// recomputed from the update because each update carries the whole window.
func (a *Aggregator) record(u model.Update) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalUpdates++

	st := a.streams[u.Stream]
	st.Refreshes++
	st.LastRefresh = u.FetchedAt
	st.LastError = u.Err

	switch u.Stream {
	case model.StreamLogs:
		st.Records = len(u.Logs)
		a.levelCounts = make(map[string]int64)
		var errs int
		for _, l := range u.Logs {
			a.levelCounts[l.Level]++
			if l.Status >= 500 || l.Level == "ERROR" {
				errs++
			}
		}
		a.errorRate = 0
		if len(u.Logs) > 0 {
			a.errorRate = float64(errs) / float64(len(u.Logs))
		}
	case model.StreamMetrics:
		st.Records = len(u.Metrics)
		a.avgCPU, a.peakCPU, a.avgMem, a.peakMem = 0, 0, 0, 0
		for _, m := range u.Metrics {
			a.avgCPU += m.CPU
			a.avgMem += m.Memory
			if m.CPU > a.peakCPU {
				a.peakCPU = m.CPU
			}
			if m.Memory > a.peakMem {
				a.peakMem = m.Memory
			}
		}
		if n := float64(len(u.Metrics)); n > 0 {
			a.avgCPU /= n
			a.avgMem /= n
		}
	case model.StreamCommits:
		st.Records = len(u.Commits)
	}
	a.streams[u.Stream] = st
	a.window = append(a.window, sample{at: time.Now(), records: st.Records})
}

// prune removes samples older than the rate window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-rateWindow)
	i := 0
	for _, s := range a.window {
		if s.at.After(cutoff) {
			a.window[i] = s
			i++
		}
	}
	a.window = a.window[:i]
}
