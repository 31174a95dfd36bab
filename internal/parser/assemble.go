package parser

import (
	"strings"

	"github.com/atikulmunna/logagent/internal/model"
)

// LogAssembler pairs log lines as they arrive one at a time, applying the
// same retention and pairing rules as SplitLogBlocks.
type LogAssembler struct {
	parser  *LogParser
	source  string
	pending string
	waiting bool
}

// NewLogAssembler returns an assembler that parses completed blocks with p.
func NewLogAssembler(p *LogParser, source string) *LogAssembler {
	if source == "" {
		source = model.SourceFilteredLogs
	}
	return &LogAssembler{parser: p, source: source}
}

// Feed adds one line. It returns a record when the line completes a block
// that parses; rejected blocks are logged and dropped.
func (a *LogAssembler) Feed(line string) (model.LogRecord, bool) {
	line, ok := retained(line)
	if !ok {
		return model.LogRecord{}, false
	}
	if !a.waiting {
		a.pending, a.waiting = line, true
		return model.LogRecord{}, false
	}
	b := LogBlock{Header: a.pending, Message: line}
	a.pending, a.waiting = "", false
	return a.emit(b)
}

// Pending returns the header still waiting for its message line.
func (a *LogAssembler) Pending() (string, bool) { return a.pending, a.waiting }

// Restore puts back a header saved from Pending.
func (a *LogAssembler) Restore(header string) {
	if header != "" {
		a.pending, a.waiting = header, true
	}
}

// Flush emits a waiting header as a block with an empty message.
func (a *LogAssembler) Flush() (model.LogRecord, bool) {
	if !a.waiting {
		return model.LogRecord{}, false
	}
	b := LogBlock{Header: a.pending}
	a.pending, a.waiting = "", false
	return a.emit(b)
}

func (a *LogAssembler) emit(b LogBlock) (model.LogRecord, bool) {
	rec, err := ParseLogBlock(b)
	if err != nil {
		a.parser.warn(b, err)
		return model.LogRecord{}, false
	}
	rec.Source = a.source
	return rec, true
}

// ParseMetricStreamLine parses one line from a followed metrics file.
// Blank lines, session headers and lines without the CPU marker are ignored.
func ParseMetricStreamLine(line, source string) (model.MetricRecord, bool) {
	line, ok := retained(line)
	if !ok || !strings.Contains(line, metricsMarker) {
		return model.MetricRecord{}, false
	}
	rec, ok := ParseMetricLine(line)
	if !ok {
		return model.MetricRecord{}, false
	}
	if source == "" {
		source = model.SourceMetricsFile
	}
	rec.Source = source
	return rec, true
}
