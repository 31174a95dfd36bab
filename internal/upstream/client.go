// Package upstream talks to the telemetry backend that generates logs and
// metrics and runs the root-cause analysis agent.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atikulmunna/logagent/internal/commits"
	"github.com/atikulmunna/logagent/internal/model"
)

// ErrStatus is returned for any non-2xx response.
var ErrStatus = errors.New("unexpected status")

// DefaultTimeout matches the dashboard's request timeout.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 16 << 20

// Analysis states reported by the agent-analysis endpoint.
const (
	AnalysisCompleted  = "completed"
	AnalysisInProgress = "in_progress"
	AnalysisNone       = "no_analysis"
	AnalysisError      = "error"
)

// Status is the telemetry generator state.
type Status struct {
	Status       string `json:"status"`
	IsGenerating bool   `json:"is_generating"`
}

// Ack is returned by the start, stop and trigger endpoints.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Analysis is the agent-analysis payload. Steps is only present when the
// backend reports progress explicitly.
type Analysis struct {
	Status   string          `json:"status"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
	Message  string          `json:"message,omitempty"`
	Steps    []model.Step    `json:"steps,omitempty"`
}

// Content returns the analysis text. Agent results wrapped as
// {"output": "..."} are unwrapped; other objects are returned as JSON.
func (a Analysis) Content() string {
	raw := bytes.TrimSpace(a.Analysis)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var wrapped struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Output != nil {
		return *wrapped.Output
	}
	return string(raw)
}

// CommitsQuery selects commits from the backend.
type CommitsQuery struct {
	K         int
	Repo      string
	UseStatic bool
}

// Client is a JSON client for the telemetry backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.doJSON(ctx, http.MethodGet, "/status", &out)
	return out, err
}

// Start resumes telemetry generation.
func (c *Client) Start(ctx context.Context) (Ack, error) {
	var out Ack
	err := c.doJSON(ctx, http.MethodPost, "/start", &out)
	return out, err
}

// Stop pauses telemetry generation.
func (c *Client) Stop(ctx context.Context) (Ack, error) {
	var out Ack
	err := c.doJSON(ctx, http.MethodPost, "/stop", &out)
	return out, err
}

// TriggerAnalysis asks the agent to start a root-cause analysis.
func (c *Client) TriggerAnalysis(ctx context.Context) (Ack, error) {
	var out Ack
	err := c.doJSON(ctx, http.MethodPost, "/trigger-analysis", &out)
	return out, err
}

// Analysis fetches the latest analysis state.
func (c *Client) Analysis(ctx context.Context) (Analysis, error) {
	var out Analysis
	err := c.doJSON(ctx, http.MethodGet, "/agent-analysis", &out)
	return out, err
}

// Commits fetches and normalizes commits.
func (c *Client) Commits(ctx context.Context, q CommitsQuery) ([]model.CommitRecord, error) {
	query := url.Values{}
	if q.K > 0 {
		query.Set("k", strconv.Itoa(q.K))
	}
	if q.Repo != "" {
		query.Set("repo", q.Repo)
	}
	if q.UseStatic {
		query.Set("use_static", "true")
	}
	raw, err := c.do(ctx, http.MethodGet, withQuery("/commits", query))
	if err != nil {
		return nil, err
	}
	recs, err := commits.ParseJSON(raw, model.SourceUpstream, c.now())
	if err != nil {
		return nil, fmt.Errorf("/commits: %w", err)
	}
	return recs, nil
}

// CommitsInfo reports the backend's static commit dataset.
func (c *Client) CommitsInfo(ctx context.Context) (commits.Info, error) {
	var out commits.Info
	err := c.doJSON(ctx, http.MethodGet, "/commits/info", &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, resp any) error {
	raw, err := c.do(ctx, method, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointName(path), err)
	}
	request.Header.Set("Accept", "application/json")
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpointName(path), err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", endpointName(path), err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %w %d", endpointName(path), ErrStatus, response.StatusCode)
	}
	return body, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func endpointName(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func withQuery(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}
	return endpoint + "?" + query.Encode()
}
