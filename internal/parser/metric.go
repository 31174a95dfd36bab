package parser

import (
	"strconv"

	"github.com/atikulmunna/logagent/internal/model"
)

// MetricParser handles single-line metrics samples:
//
//	[<ts>] CPU: <f>% - Memory: <f>% - Memory Used: <n>MB - Memory Total: <n>MB
//
// Lines missing the timestamp, CPU or memory percentage are dropped silently.
type MetricParser struct{}

func NewMetricParser() *MetricParser { return &MetricParser{} }

func (p *MetricParser) ParseText(text string, source string) []model.MetricRecord {
	if source == "" {
		source = model.SourceMetricsFile
	}

	var records []model.MetricRecord
	for _, line := range SplitMetricLines(text) {
		rec, ok := ParseMetricLine(line)
		if !ok {
			continue
		}
		rec.Source = source
		records = append(records, rec)
	}
	return records
}

// ParseMetricLine extracts a MetricRecord from one line.
func ParseMetricLine(line string) (model.MetricRecord, bool) {
	ts, ok := fieldTimestamp(line)
	if !ok {
		return model.MetricRecord{}, false
	}
	cpu, ok := floatField(fieldCPU, line)
	if !ok {
		return model.MetricRecord{}, false
	}
	mem, ok := floatField(fieldMemory, line)
	if !ok {
		return model.MetricRecord{}, false
	}

	return model.MetricRecord{
		Timestamp:     ts,
		CPU:           cpu,
		Memory:        mem,
		CPUUsage:      cpu,
		MemoryUsage:   mem,
		MemoryUsedMB:  intField(fieldMemoryUsed, line),
		MemoryTotalMB: intField(fieldMemoryTotal, line),
	}, true
}

func floatField(e extractor, line string) (float64, bool) {
	v, ok := e(line)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
