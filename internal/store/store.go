// Package store persists detected incidents and analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const (
	incidentTable = "incidents"
	runTable      = "analysis_runs"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed incident and analysis history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			reason TEXT NOT NULL,
			record_ts TEXT NOT NULL,
			detected_at INTEGER NOT NULL,
			analysis_id TEXT NOT NULL DEFAULT ''
		);`, incidentTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_detected ON %s(detected_at);`, incidentTable, incidentTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			heuristic INTEGER NOT NULL DEFAULT 0,
			steps_json BLOB NOT NULL,
			content TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`, runTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_started ON %s(started_at);`, runTable, runTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveIncident stores inc, assigning an ID and detection time when unset.
func (s *Store) SaveIncident(ctx context.Context, inc model.Incident) (model.Incident, error) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, kind, reason, record_ts, detected_at, analysis_id) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET analysis_id = excluded.analysis_id`, incidentTable),
		inc.ID, inc.Kind, inc.Reason, inc.Timestamp, inc.DetectedAt.UnixNano(), inc.AnalysisID,
	)
	if err != nil {
		return model.Incident{}, fmt.Errorf("save incident: %w", err)
	}
	return inc, nil
}

// ListIncidents returns the newest incidents first, at most limit rows
// (limit <= 0 means no limit).
func (s *Store) ListIncidents(ctx context.Context, limit int) ([]model.Incident, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, kind, reason, record_ts, detected_at, analysis_id FROM %s ORDER BY detected_at DESC LIMIT ?`, incidentTable),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	out := []model.Incident{}
	for rows.Next() {
		var inc model.Incident
		var detected int64
		if err := rows.Scan(&inc.ID, &inc.Kind, &inc.Reason, &inc.Timestamp, &detected, &inc.AnalysisID); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.DetectedAt = time.Unix(0, detected).UTC()
		out = append(out, inc)
	}
	return out, rows.Err()
}

// SaveRun inserts or updates an analysis run.
func (s *Store) SaveRun(ctx context.Context, run model.AnalysisRun) (model.AnalysisRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = now
	}
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, status, heuristic, steps_json, content, started_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, heuristic = excluded.heuristic,
				steps_json = excluded.steps_json, content = excluded.content, updated_at = excluded.updated_at`, runTable),
		run.ID, run.Status, boolInt(run.Heuristic), steps, run.Content, run.StartedAt.UnixNano(), run.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, status, heuristic, steps_json, content, started_at, updated_at FROM %s WHERE id = ?`, runTable), id)
	return scanRun(row)
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (model.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, status, heuristic, steps_json, content, started_at, updated_at FROM %s ORDER BY started_at DESC LIMIT 1`, runTable))
	return scanRun(row)
}

func scanRun(row *sql.Row) (model.AnalysisRun, error) {
	var run model.AnalysisRun
	var heuristic int
	var steps []byte
	var started, updated int64
	if err := row.Scan(&run.ID, &run.Status, &heuristic, &steps, &run.Content, &started, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AnalysisRun{}, ErrNotFound
		}
		return model.AnalysisRun{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return model.AnalysisRun{}, fmt.Errorf("decode steps: %w", err)
	}
	run.Heuristic = heuristic != 0
	run.StartedAt = time.Unix(0, started).UTC()
	run.UpdatedAt = time.Unix(0, updated).UTC()
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
