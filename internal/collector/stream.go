package collector

import (
	"context"
	"sync"
	"time"

	"github.com/atikulmunna/logagent/internal/commits"
	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/parser"
	"github.com/atikulmunna/logagent/internal/source"
	"github.com/atikulmunna/logagent/internal/window"
	"go.uber.org/zap"
)

// Refresher is one stream a Task can drive. Fetch must not change visible
// state; Apply publishes a fetched update into the stream's window.
type Refresher interface {
	Name() model.Stream
	Fetch(ctx context.Context) model.Update
	Apply(u model.Update)
}

// Stream owns the source, parse function and result window of one feed.
type Stream[T any] struct {
	name    model.Stream
	src     source.Source
	parse   func(text string) ([]T, error)
	ring    *window.Ring[T]
	wrap    func(u *model.Update, recs []T)
	extract func(u model.Update) []T
	now     func() time.Time

	// unbounded streams keep every parsed record; the ring grows to fit.
	unbounded bool

	mu        sync.RWMutex
	err       string
	fetchedAt time.Time
}

func (s *Stream[T]) Name() model.Stream { return s.name }

// Source returns the underlying source.
func (s *Stream[T]) Source() source.Source { return s.src }

// Fetch reads and parses the source. A failed read yields an empty window
// and the error text.
func (s *Stream[T]) Fetch(ctx context.Context) model.Update {
	u := model.Update{Stream: s.name, FetchedAt: s.now().UTC()}

	var recs []T
	text, err := s.src.Fetch(ctx)
	if err == nil {
		recs, err = s.parse(text)
	}
	if err != nil {
		u.Err = err.Error()
		recs = nil
	}
	if !s.unbounded {
		recs = window.Last(recs, s.capacity())
	}
	s.wrap(&u, recs)
	return u
}

func (s *Stream[T]) Apply(u model.Update) {
	recs := s.extract(u)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unbounded && s.ring.Cap() < len(recs) {
		s.ring = window.NewRing[T](len(recs))
	}
	s.ring.Replace(recs)
	s.err = u.Err
	s.fetchedAt = u.FetchedAt
}

// Snapshot returns a copy of the current window and the last error text.
func (s *Stream[T]) Snapshot() ([]T, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Snapshot(), s.err
}

func (s *Stream[T]) capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Cap()
}

// FetchedAt reports when the current window was loaded.
func (s *Stream[T]) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// NewLogStream parses the two-line log format and keeps the last size records.
func NewLogStream(src source.Source, size int, logger *zap.Logger) *Stream[model.LogRecord] {
	p := parser.NewLogParser(logger)
	return &Stream[model.LogRecord]{
		name: model.StreamLogs,
		src:  src,
		parse: func(text string) ([]model.LogRecord, error) {
			return p.ParseText(text, model.SourceFilteredLogs), nil
		},
		ring:    window.NewRing[model.LogRecord](size),
		wrap:    func(u *model.Update, recs []model.LogRecord) { u.Logs = recs },
		extract: func(u model.Update) []model.LogRecord { return u.Logs },
		now:     time.Now,
	}
}

// NewMetricStream parses metrics lines and keeps the last size samples.
func NewMetricStream(src source.Source, size int) *Stream[model.MetricRecord] {
	p := parser.NewMetricParser()
	return &Stream[model.MetricRecord]{
		name: model.StreamMetrics,
		src:  src,
		parse: func(text string) ([]model.MetricRecord, error) {
			return p.ParseText(text, model.SourceMetricsFile), nil
		},
		ring:    window.NewRing[model.MetricRecord](size),
		wrap:    func(u *model.Update, recs []model.MetricRecord) { u.Metrics = recs },
		extract: func(u model.Update) []model.MetricRecord { return u.Metrics },
		now:     time.Now,
	}
}

// NewCommitStream normalizes a commit JSON document and keeps the first
// limit commits, or every commit when limit <= 0. Records fetched over HTTP
// are tagged as upstream.
func NewCommitStream(src source.Source, limit int) *Stream[model.CommitRecord] {
	tag := model.SourceStaticFile
	if _, ok := src.(*source.HTTPSource); ok {
		tag = model.SourceUpstream
	}
	s := &Stream[model.CommitRecord]{
		name:      model.StreamCommits,
		src:       src,
		ring:      window.NewRing[model.CommitRecord](limit),
		wrap:      func(u *model.Update, recs []model.CommitRecord) { u.Commits = recs },
		extract:   func(u model.Update) []model.CommitRecord { return u.Commits },
		now:       time.Now,
		unbounded: limit <= 0,
	}
	s.parse = func(text string) ([]model.CommitRecord, error) {
		recs, err := commits.ParseJSON([]byte(text), tag, s.now())
		if err != nil {
			return nil, err
		}
		return commits.Head(recs, limit), nil
	}
	return s
}
