package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atikulmunna/logagent/internal/aggregator"
	"github.com/atikulmunna/logagent/internal/commits"
	"github.com/atikulmunna/logagent/internal/hub"
	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/store"
	"github.com/atikulmunna/logagent/internal/upstream"
	"github.com/gorilla/websocket"
)

type fakeData struct {
	logs    []model.LogRecord
	metrics []model.MetricRecord
	commits []model.CommitRecord
	errText string
}

func (f fakeData) Logs() ([]model.LogRecord, string)       { return f.logs, f.errText }
func (f fakeData) Metrics() ([]model.MetricRecord, string) { return f.metrics, f.errText }
func (f fakeData) Commits() ([]model.CommitRecord, string) { return f.commits, f.errText }

type fakeUpstream struct {
	err     error
	started bool
	query   upstream.CommitsQuery
}

func (f *fakeUpstream) Status(ctx context.Context) (upstream.Status, error) {
	return upstream.Status{Status: "running", IsGenerating: true}, f.err
}

func (f *fakeUpstream) Start(ctx context.Context) (upstream.Ack, error) {
	f.started = true
	return upstream.Ack{Status: "started"}, f.err
}

func (f *fakeUpstream) Stop(ctx context.Context) (upstream.Ack, error) {
	return upstream.Ack{Status: "stopped"}, f.err
}

func (f *fakeUpstream) Commits(ctx context.Context, q upstream.CommitsQuery) ([]model.CommitRecord, error) {
	f.query = q
	return []model.CommitRecord{{Hash: "r1"}, {Hash: "r2"}}, f.err
}

func (f *fakeUpstream) CommitsInfo(ctx context.Context) (commits.Info, error) {
	return commits.Info{StaticDataAvailable: true, StaticCommitCount: 3}, f.err
}

type fakeAnalyzer struct {
	run model.AnalysisRun
	err error
}

func (f *fakeAnalyzer) Trigger(ctx context.Context) (model.AnalysisRun, error) { return f.run, f.err }
func (f *fakeAnalyzer) Current(ctx context.Context) (model.AnalysisRun, error) { return f.run, f.err }

type response struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newTestServer(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = hub.New(make(chan model.Update), nil)
	}
	if deps.Aggregator == nil {
		deps.Aggregator = aggregator.New(make(chan model.Update), func() int64 { return 0 }, func() int { return 3 })
	}
	if deps.Data == nil {
		deps.Data = fakeData{}
	}
	return New(deps, "0")
}

func do(t *testing.T, s *Server, method, path string) (int, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON from %s: %v\nraw: %s", path, err, rec.Body.String())
	}
	return rec.Code, body
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(Deps{Data: fakeData{logs: []model.LogRecord{
		{Timestamp: "t1", Level: "INFO"},
		{Timestamp: "t2", Level: "ERROR"},
	}}})

	code, body := do(t, s, http.MethodGet, "/api/logs?level=error")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var logs []model.LogRecord
	if err := json.Unmarshal(body.Data, &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Timestamp != "t2" {
		t.Errorf("expected only the ERROR record, got %+v", logs)
	}
}

func TestFailedSourceIsNotServerError(t *testing.T) {
	s := newTestServer(Deps{Data: fakeData{metrics: []model.MetricRecord{}, errText: "open data/metrics.txt: no such file"}})

	code, body := do(t, s, http.MethodGet, "/api/metrics")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if string(body.Data) != "[]" {
		t.Errorf("expected empty array, got %s", body.Data)
	}
	if !strings.Contains(body.Error, "no such file") {
		t.Errorf("expected error description, got %q", body.Error)
	}
}

func TestCommitsEndpoint(t *testing.T) {
	up := &fakeUpstream{}
	s := newTestServer(Deps{
		Data:     fakeData{commits: []model.CommitRecord{{Hash: "a"}, {Hash: "b"}, {Hash: "c"}}},
		Upstream: up,
	})

	_, body := do(t, s, http.MethodGet, "/api/commits?k=2")
	var recs []model.CommitRecord
	if err := json.Unmarshal(body.Data, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Hash != "a" {
		t.Errorf("expected first 2 collected commits, got %+v", recs)
	}

	_, body = do(t, s, http.MethodGet, "/api/commits?k=1&repo=org/repo")
	if err := json.Unmarshal(body.Data, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Hash != "r1" {
		t.Errorf("expected backend commits, got %+v", recs)
	}
	if up.query.Repo != "org/repo" || up.query.K != 1 {
		t.Errorf("unexpected forwarded query %+v", up.query)
	}
}

func TestCommitsInfoFallsBackToStatic(t *testing.T) {
	s := newTestServer(Deps{Upstream: &fakeUpstream{err: errors.New("down")}, StaticCommits: "does-not-exist.json"})

	_, body := do(t, s, http.MethodGet, "/api/commits/info")
	var info commits.Info
	if err := json.Unmarshal(body.Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.StaticDataAvailable {
		t.Errorf("expected unavailable static data, got %+v", info)
	}
}

func TestGeneratorControl(t *testing.T) {
	up := &fakeUpstream{}
	s := newTestServer(Deps{Upstream: up})

	code, _ := do(t, s, http.MethodPost, "/api/start")
	if code != http.StatusOK || !up.started {
		t.Errorf("expected start to reach the backend, got %d", code)
	}

	up.err = errors.New("refused")
	code, body := do(t, s, http.MethodPost, "/api/stop")
	if code != http.StatusBadGateway || body.Error != "refused" {
		t.Errorf("expected 502 with error, got %d %q", code, body.Error)
	}

	noUpstream := newTestServer(Deps{})
	code, _ = do(t, noUpstream, http.MethodPost, "/api/start")
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without backend, got %d", code)
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	an := &fakeAnalyzer{run: model.AnalysisRun{ID: "run-1", Status: model.RunRunning}}
	s := newTestServer(Deps{Analysis: an})

	code, body := do(t, s, http.MethodPost, "/api/analysis")
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	var run model.AnalysisRun
	if err := json.Unmarshal(body.Data, &run); err != nil {
		t.Fatal(err)
	}
	if run.ID != "run-1" {
		t.Errorf("expected run-1, got %q", run.ID)
	}

	an.err = store.ErrNotFound
	code, body = do(t, s, http.MethodGet, "/api/analysis")
	if code != http.StatusOK || body.Error != "no analysis" {
		t.Errorf("expected no analysis, got %d %q", code, body.Error)
	}
}

func TestIncidentsEndpoint(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.SaveIncident(context.Background(), model.Incident{Kind: model.IncidentMetric, Reason: "cpu"}); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(Deps{Incidents: st})
	_, body := do(t, s, http.MethodGet, "/api/incidents")
	var list []model.Incident
	if err := json.Unmarshal(body.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Reason != "cpu" {
		t.Errorf("unexpected incidents %+v", list)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(Deps{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["sources"] != float64(3) {
		t.Errorf("expected 3 sources, got %v", body["sources"])
	}
}

func TestDashboardServed(t *testing.T) {
	s := newTestServer(Deps{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/app.js") {
		t.Error("expected dashboard HTML")
	}
}

func TestWebSocketStreamsUpdates(t *testing.T) {
	input := make(chan model.Update, 1)
	h := hub.New(input, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Start(ctx)

	s := newTestServer(Deps{Hub: h})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	input <- model.Update{Stream: model.StreamMetrics, Metrics: []model.MetricRecord{{Timestamp: "t", CPU: 42}}}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.Update
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Stream != model.StreamMetrics || len(got.Metrics) != 1 || got.Metrics[0].CPU != 42 {
		t.Errorf("unexpected update %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for h.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected websocket to unsubscribe after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
