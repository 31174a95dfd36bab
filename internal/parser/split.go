package parser

import "strings"

// sessionHeaderPrefix marks lines such as "=== Metrics Session - ... ===".
const sessionHeaderPrefix = "="

// metricsMarker is the token every metrics line carries.
const metricsMarker = "CPU:"

// LogBlock is one candidate log record: a header line and its message line.
// Message is empty when the header was the last retained line.
type LogBlock struct {
	Header  string
	Message string
}

// SplitLogBlocks drops blank lines and session headers, then pairs the
// remaining lines two at a time. A trailing unpaired header is kept as a
// block with an empty message.
func SplitLogBlocks(text string) []LogBlock {
	lines := retainedLines(text, nil)

	blocks := make([]LogBlock, 0, (len(lines)+1)/2)
	for i := 0; i < len(lines); i += 2 {
		b := LogBlock{Header: lines[i]}
		if i+1 < len(lines) {
			b.Message = lines[i+1]
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// SplitMetricLines returns one candidate line per metrics sample.
func SplitMetricLines(text string) []string {
	return retainedLines(text, func(line string) bool {
		return strings.Contains(line, metricsMarker)
	})
}

// retainedLines splits text into lines, skipping blanks, session headers and
// anything keep rejects.
func retainedLines(text string, keep func(string) bool) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line, ok := retained(line)
		if !ok {
			continue
		}
		if keep != nil && !keep(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// retained strips a trailing CR and reports whether the line carries data.
func retained(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, sessionHeaderPrefix) {
		return line, false
	}
	return line, true
}
