package parser

import (
	"errors"
	"strconv"

	"github.com/atikulmunna/logagent/internal/model"
	"go.uber.org/zap"
)

// Reasons a log block is rejected.
var (
	ErrNoTimestamp = errors.New("missing [timestamp]")
	ErrNoLevel     = errors.New("missing level")
)

// LogParser handles the two-line filtered log format:
//
//	[<ts>] <LEVEL> - User: <u> - IP: <ip> - <METHOD> <path> - Status: <n> - Latency: <n>ms
//	Message: <text>
type LogParser struct {
	logger *zap.Logger
}

// NewLogParser returns a LogParser that reports skipped blocks to logger.
func NewLogParser(logger *zap.Logger) *LogParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogParser{logger: logger}
}

// ParseText parses every block in text. Blocks without a timestamp or level
// are skipped with a warning; parsing continues with the next block.
func (p *LogParser) ParseText(text string, source string) []model.LogRecord {
	if source == "" {
		source = model.SourceFilteredLogs
	}

	var records []model.LogRecord
	for _, b := range SplitLogBlocks(text) {
		rec, err := ParseLogBlock(b)
		if err != nil {
			p.warn(b, err)
			continue
		}
		rec.Source = source
		records = append(records, rec)
	}
	return records
}

func (p *LogParser) warn(b LogBlock, err error) {
	p.logger.Warn("skipping log block",
		zap.String("line", b.Header),
		zap.Error(err),
	)
}

// ParseLogBlock extracts a LogRecord from one block. Only timestamp and level
// are required; every other field falls back to its zero value.
func ParseLogBlock(b LogBlock) (model.LogRecord, error) {
	ts, ok := fieldTimestamp(b.Header)
	if !ok {
		return model.LogRecord{}, ErrNoTimestamp
	}
	level, ok := fieldLevel(b.Header)
	if !ok {
		return model.LogRecord{}, ErrNoLevel
	}

	rec := model.LogRecord{
		Timestamp: ts,
		Level:     level,
		Message:   fieldMessage(b.Message),
	}
	rec.User, _ = fieldUser(b.Header)
	rec.IP, _ = fieldIP(b.Header)
	rec.Method, rec.Path, _ = fieldRequest(b.Header)
	rec.Status = intField(fieldStatus, b.Header)
	rec.Latency = intField(fieldLatency, b.Header)
	return rec, nil
}

// intField returns 0 when the field is absent or does not fit an int.
func intField(e extractor, line string) int {
	v, ok := e(line)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
