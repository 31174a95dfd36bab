// Package parser turns the flat log and metrics files written by the
// telemetry collector into structured records.
package parser

import (
	"github.com/atikulmunna/logagent/internal/window"
)

// Default window sizes applied by the dashboard.
const (
	DefaultLogWindow    = 50
	DefaultMetricWindow = 30
)

// Parser converts raw file text into records. An empty source keeps the
// parser's default source tag.
type Parser[T any] interface {
	ParseText(text string, source string) []T
}

// Pipeline runs a parser over raw text and keeps the most recent records.
type Pipeline[T any] struct {
	parser Parser[T]
	limit  int
}

// NewPipeline wires a parser to a result window of the given size.
func NewPipeline[T any](p Parser[T], limit int) *Pipeline[T] {
	return &Pipeline[T]{parser: p, limit: limit}
}

// Run parses text and returns at most limit records, oldest first.
func (p *Pipeline[T]) Run(text string, source string) []T {
	return window.Last(p.parser.ParseText(text, source), p.limit)
}

// Limit reports the window size.
func (p *Pipeline[T]) Limit() int { return p.limit }
