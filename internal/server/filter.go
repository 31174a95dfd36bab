package server

import (
	"strings"

	"github.com/atikulmunna/logagent/internal/model"
)

// filterLevel keeps logs whose level is in the comma-separated list.
func filterLevel(logs []model.LogRecord, levels string) []model.LogRecord {
	set := make(map[string]bool)
	for _, l := range strings.Split(levels, ",") {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			set[l] = true
		}
	}
	if len(set) == 0 {
		return logs
	}
	out := make([]model.LogRecord, 0, len(logs))
	for _, l := range logs {
		if set[strings.ToUpper(l.Level)] {
			out = append(out, l)
		}
	}
	return out
}
