package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/atikulmunna/logagent/internal/aggregator"
	"github.com/atikulmunna/logagent/internal/commits"
	"github.com/atikulmunna/logagent/internal/hub"
	"github.com/atikulmunna/logagent/internal/model"
	"github.com/atikulmunna/logagent/internal/store"
	"github.com/atikulmunna/logagent/internal/upstream"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed all:web
var webFS embed.FS

// Data exposes the current stream windows and their last refresh errors.
type Data interface {
	Logs() ([]model.LogRecord, string)
	Metrics() ([]model.MetricRecord, string)
	Commits() ([]model.CommitRecord, string)
}

// Incidents lists stored incidents, newest first.
type Incidents interface {
	ListIncidents(ctx context.Context, limit int) ([]model.Incident, error)
}

// Upstream is the telemetry backend.
type Upstream interface {
	Status(ctx context.Context) (upstream.Status, error)
	Start(ctx context.Context) (upstream.Ack, error)
	Stop(ctx context.Context) (upstream.Ack, error)
	Commits(ctx context.Context, q upstream.CommitsQuery) ([]model.CommitRecord, error)
	CommitsInfo(ctx context.Context) (commits.Info, error)
}

// Analyzer triggers and reports root-cause analyses.
type Analyzer interface {
	Trigger(ctx context.Context) (model.AnalysisRun, error)
	Current(ctx context.Context) (model.AnalysisRun, error)
}

// Deps are the components the dashboard reads from. Upstream, Analysis and
// Incidents may be nil.
type Deps struct {
	Hub           *hub.Hub
	Aggregator    *aggregator.Aggregator
	Data          Data
	Incidents     Incidents
	Upstream      Upstream
	Analysis      Analyzer
	StaticCommits string
	Logger        *zap.Logger
}

// Server holds the Gin engine and dependencies for the web dashboard.
type Server struct {
	engine *gin.Engine
	deps   Deps
	logger *zap.Logger
	port   string
}

// envelope is the response shape of every data endpoint. A failed source
// yields empty data plus the error text rather than a 5xx.
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// New creates a web server for the dashboard.
func New(deps Deps, port string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine: engine,
		deps:   deps,
		logger: logger,
		port:   port,
	}

	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.engine }

// serveEmbedded reads a file from the embedded FS and writes it with the given content type.
func serveEmbedded(webContent fs.FS, name string, contentType string) gin.HandlerFunc {
	data, err := fs.ReadFile(webContent, name)
	return func(c *gin.Context) {
		if err != nil {
			c.String(http.StatusNotFound, "file not found: %s", name)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func (s *Server) setupRoutes() {
	webContent, _ := fs.Sub(webFS, "web")

	s.engine.GET("/", serveEmbedded(webContent, "index.html", "text/html; charset=utf-8"))
	s.engine.GET("/style.css", serveEmbedded(webContent, "style.css", "text/css; charset=utf-8"))
	s.engine.GET("/app.js", serveEmbedded(webContent, "app.js", "application/javascript; charset=utf-8"))

	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.deps.Aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"uptime":          stats.Uptime,
			"sources":         stats.Sources,
			"rps":             stats.RPS,
			"dropped_updates": stats.DroppedUpdates,
		})
	})

	api := s.engine.Group("/api")
	api.GET("/logs", s.handleLogs)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/commits", s.handleCommits)
	api.GET("/commits/info", s.handleCommitsInfo)
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, envelope{Data: s.deps.Aggregator.Snapshot()})
	})
	api.GET("/incidents", s.handleIncidents)
	api.GET("/status", s.handleStatus)
	api.POST("/start", s.handleGenerator(true))
	api.POST("/stop", s.handleGenerator(false))
	api.POST("/analysis", s.handleTriggerAnalysis)
	api.GET("/analysis", s.handleAnalysis)

	s.engine.GET("/ws", s.handleWebSocket)

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

func (s *Server) handleLogs(c *gin.Context) {
	logs, errText := s.deps.Data.Logs()
	if lv := c.Query("level"); lv != "" {
		logs = filterLevel(logs, lv)
	}
	c.JSON(http.StatusOK, envelope{Data: logs, Error: errText})
}

func (s *Server) handleMetrics(c *gin.Context) {
	metrics, errText := s.deps.Data.Metrics()
	c.JSON(http.StatusOK, envelope{Data: metrics, Error: errText})
}

// handleCommits serves the collected commits. A repo query is forwarded to
// the backend when one is configured.
func (s *Server) handleCommits(c *gin.Context) {
	k := queryInt(c, "k", 0)
	if repo := c.Query("repo"); repo != "" && s.deps.Upstream != nil {
		recs, err := s.deps.Upstream.Commits(c.Request.Context(), upstream.CommitsQuery{
			K:         k,
			Repo:      repo,
			UseStatic: c.Query("use_static") == "true",
		})
		if err != nil {
			c.JSON(http.StatusOK, envelope{Data: []model.CommitRecord{}, Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, envelope{Data: commits.Head(recs, k)})
		return
	}

	recs, errText := s.deps.Data.Commits()
	c.JSON(http.StatusOK, envelope{Data: commits.Head(recs, k), Error: errText})
}

func (s *Server) handleCommitsInfo(c *gin.Context) {
	if s.deps.Upstream != nil {
		info, err := s.deps.Upstream.CommitsInfo(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, envelope{Data: info})
			return
		}
		s.logger.Debug("commits info from backend failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, envelope{Data: commits.StaticInfo(s.deps.StaticCommits)})
}

func (s *Server) handleIncidents(c *gin.Context) {
	if s.deps.Incidents == nil {
		c.JSON(http.StatusOK, envelope{Data: []model.Incident{}, Error: "incident store not configured"})
		return
	}
	list, err := s.deps.Incidents.ListIncidents(c.Request.Context(), queryInt(c, "limit", 100))
	if err != nil {
		c.JSON(http.StatusOK, envelope{Data: []model.Incident{}, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, envelope{Data: list})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.deps.Upstream == nil {
		c.JSON(http.StatusOK, envelope{Error: "upstream not configured"})
		return
	}
	st, err := s.deps.Upstream.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, envelope{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, envelope{Data: st})
}

func (s *Server) handleGenerator(start bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Upstream == nil {
			c.JSON(http.StatusServiceUnavailable, envelope{Error: "upstream not configured"})
			return
		}
		call := s.deps.Upstream.Stop
		if start {
			call = s.deps.Upstream.Start
		}
		ack, err := call(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, envelope{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, envelope{Data: ack})
	}
}

func (s *Server) handleTriggerAnalysis(c *gin.Context) {
	if s.deps.Analysis == nil {
		c.JSON(http.StatusServiceUnavailable, envelope{Error: "analysis not configured"})
		return
	}
	run, err := s.deps.Analysis.Trigger(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, envelope{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, envelope{Data: run})
}

func (s *Server) handleAnalysis(c *gin.Context) {
	if s.deps.Analysis == nil {
		c.JSON(http.StatusOK, envelope{Error: "analysis not configured"})
		return
	}
	run, err := s.deps.Analysis.Current(c.Request.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusOK, envelope{Error: "no analysis"})
	case err != nil:
		c.JSON(http.StatusOK, envelope{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, envelope{Data: run})
	}
}

// Start runs the server until ctx is cancelled, then shuts it down.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("dashboard listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
