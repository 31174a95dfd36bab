// Package detect flags log and metric samples that should trigger a
// root-cause analysis.
package detect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
)

// Rules holds the detection thresholds.
type Rules struct {
	CPUThreshold    float64
	MemoryThreshold float64
	Keywords        []string
}

// DefaultRules mirrors the telemetry backend's event detection.
func DefaultRules() Rules {
	return Rules{
		CPUThreshold:    85,
		MemoryThreshold: 90,
		Keywords:        []string{"error", "failed", "exception", "critical"},
	}
}

// maxSeen bounds the dedup set; it is far above any window size. The oldest
// keys are evicted first, and they have long left the windows by then.
const maxSeen = 4096

// Detector evaluates records against Rules. Windows are re-read on every
// refresh, so a record is reported at most once per detector.
type Detector struct {
	rules Rules
	now   func() time.Time

	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // seen keys, oldest first
	maxSeen int
}

func New(rules Rules) *Detector {
	kw := make([]string, 0, len(rules.Keywords))
	for _, k := range rules.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	rules.Keywords = kw
	return &Detector{
		rules:   rules,
		now:     time.Now,
		seen:    make(map[string]struct{}),
		maxSeen: maxSeen,
	}
}

// CheckMetric reports why m crosses a threshold, if it does.
func (d *Detector) CheckMetric(m model.MetricRecord) (string, bool) {
	if m.CPU > d.rules.CPUThreshold {
		return fmt.Sprintf("cpu %.1f%% > %.1f%%", m.CPU, d.rules.CPUThreshold), true
	}
	if m.Memory > d.rules.MemoryThreshold {
		return fmt.Sprintf("memory %.1f%% > %.1f%%", m.Memory, d.rules.MemoryThreshold), true
	}
	return "", false
}

// CheckLog reports the first keyword found in the log message.
func (d *Detector) CheckLog(l model.LogRecord) (string, bool) {
	msg := strings.ToLower(l.Message)
	for _, k := range d.rules.Keywords {
		if strings.Contains(msg, k) {
			return "keyword " + k, true
		}
	}
	return "", false
}

// Scan returns incidents for records in u that have not been reported before.
func (d *Detector) Scan(u model.Update) []model.Incident {
	var out []model.Incident
	switch u.Stream {
	case model.StreamLogs:
		for _, l := range u.Logs {
			if reason, ok := d.CheckLog(l); ok {
				out = d.appendNew(out, model.IncidentLog, l.Timestamp+"|"+l.Message, reason, l.Timestamp)
			}
		}
	case model.StreamMetrics:
		for _, m := range u.Metrics {
			if reason, ok := d.CheckMetric(m); ok {
				out = d.appendNew(out, model.IncidentMetric, m.Timestamp, reason, m.Timestamp)
			}
		}
	}
	return out
}

func (d *Detector) appendNew(out []model.Incident, kind, key, reason, ts string) []model.Incident {
	d.mu.Lock()
	defer d.mu.Unlock()

	key = kind + "|" + key
	if _, dup := d.seen[key]; dup {
		return out
	}
	for len(d.order) > 0 && len(d.order) >= d.maxSeen {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	return append(out, model.Incident{
		Kind:       kind,
		Reason:     reason,
		Timestamp:  ts,
		DetectedAt: d.now().UTC(),
	})
}

// Watch scans every update from updates and hands new incidents to record.
// It returns when updates is closed or ctx is cancelled.
func (d *Detector) Watch(ctx context.Context, updates <-chan model.Update, record func(context.Context, model.Incident)) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			for _, inc := range d.Scan(u) {
				record(ctx, inc)
			}
		}
	}
}
