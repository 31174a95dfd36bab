package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Renderer writes parsed records to an output stream.
type Renderer interface {
	RenderLog(rec model.LogRecord) error
	RenderMetric(rec model.MetricRecord) error
	RenderCommit(rec model.CommitRecord) error
}

// New returns the renderer for format ("json" or "text"). A nil w writes to
// stdout.
func New(format string, w io.Writer) Renderer {
	if w == nil {
		w = os.Stdout
	}
	switch strings.ToLower(format) {
	case "json":
		return &JSONRenderer{enc: json.NewEncoder(w)}
	default:
		return &TextRenderer{w: w}
	}
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleFatal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true) // cyan
	styleHash   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TextRenderer prints records to the terminal with severity-based colors.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes colorized text to stdout.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{w: os.Stdout}
}

func (r *TextRenderer) RenderLog(rec model.LogRecord) error {
	tag := styleLevelTag(rec.Level)
	req := strings.TrimSpace(rec.Method + " " + rec.Path)

	line := fmt.Sprintf("%s %s %s %d %dms %s", rec.Timestamp, tag, styleSource.Render(req), rec.Status, rec.Latency, rec.Message)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func (r *TextRenderer) RenderMetric(rec model.MetricRecord) error {
	cpu := styleThreshold(fmt.Sprintf("cpu %5.1f%%", rec.CPU), rec.CPU, 85)
	mem := styleThreshold(fmt.Sprintf("mem %5.1f%%", rec.Memory), rec.Memory, 90)

	line := fmt.Sprintf("%s %s %s %d/%dMB", rec.Timestamp, cpu, mem, rec.MemoryUsedMB, rec.MemoryTotalMB)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func (r *TextRenderer) RenderCommit(rec model.CommitRecord) error {
	hash := rec.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	line := fmt.Sprintf("%s %s %s (%s, +%d -%d)",
		styleHash.Render(fmt.Sprintf("%-8s", hash)), rec.Date, rec.Message, rec.Author,
		rec.Changes.Additions, rec.Changes.Deletions)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func styleLevelTag(level string) string {
	padded := fmt.Sprintf("%-7s", level)
	switch strings.ToUpper(level) {
	case "DEBUG":
		return styleDebug.Render(padded)
	case "WARN", "WARNING":
		return styleWarn.Render(padded)
	case "ERROR":
		return styleError.Render(padded)
	case "FATAL", "CRITICAL":
		return styleFatal.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

func styleThreshold(s string, v, limit float64) string {
	if v > limit {
		return styleError.Render(s)
	}
	return styleInfo.Render(s)
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each record as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to stdout.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(os.Stdout)}
}

func (r *JSONRenderer) RenderLog(rec model.LogRecord) error       { return r.enc.Encode(rec) }
func (r *JSONRenderer) RenderMetric(rec model.MetricRecord) error { return r.enc.Encode(rec) }
func (r *JSONRenderer) RenderCommit(rec model.CommitRecord) error { return r.enc.Encode(rec) }
