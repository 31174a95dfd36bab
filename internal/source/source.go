// Package source fetches the raw text behind each dashboard stream from local
// files, an HTTP endpoint or CloudWatch Logs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrEmptyURI = errors.New("source uri is empty")
	ErrNoMatch  = errors.New("no files matched")
)

// Source returns the current raw contents of a stream.
type Source interface {
	Fetch(ctx context.Context) (string, error)
	String() string
}

// Options tune how Open builds a Source.
type Options struct {
	HTTPTimeout time.Duration
	HTTPClient  *http.Client

	// CloudWatch settings; used for cloudwatch:// URIs only.
	Region   string
	Profile  string
	Lookback time.Duration
}

// Open picks a Source from the URI scheme:
//
//	http://..., https://...   HTTPSource
//	cloudwatch://<log-group>  CloudWatchSource
//	anything else             FileSource (glob patterns allowed)
func Open(ctx context.Context, uri string, opts Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return nil, ErrEmptyURI
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewHTTPSource(uri, opts.HTTPClient, opts.HTTPTimeout), nil
	case strings.HasPrefix(uri, cloudWatchScheme):
		group := strings.TrimPrefix(uri, cloudWatchScheme)
		client, err := NewCloudWatchClient(ctx, opts.Region, opts.Profile)
		if err != nil {
			return nil, fmt.Errorf("cloudwatch client: %w", err)
		}
		return NewCloudWatchSource(client, group, opts.Lookback), nil
	default:
		return NewFileSource(uri), nil
	}
}

// ---------------------------------------------------------------------------
// File source
// ---------------------------------------------------------------------------

// FileSource reads one file, or every file matching a doublestar pattern
// concatenated in lexical order.
type FileSource struct {
	pattern string
}

func NewFileSource(pattern string) *FileSource {
	return &FileSource{pattern: pattern}
}

func (s *FileSource) String() string { return s.pattern }

// Pattern returns the configured path or glob.
func (s *FileSource) Pattern() string { return s.pattern }

func (s *FileSource) Fetch(ctx context.Context) (string, error) {
	paths, err := s.Paths()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		b.Write(raw)
		if len(raw) > 0 && raw[len(raw)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// Paths resolves the pattern to absolute file paths.
func (s *FileSource) Paths() ([]string, error) {
	if !hasMeta(s.pattern) {
		abs, err := filepath.Abs(s.pattern)
		if err != nil {
			return nil, err
		}
		return []string{abs}, nil
	}

	matches, err := doublestar.FilepathGlob(s.pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", s.pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, s.pattern)
	}
	sort.Strings(matches)
	for i, m := range matches {
		if abs, err := filepath.Abs(m); err == nil {
			matches[i] = abs
		}
	}
	return matches, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// ---------------------------------------------------------------------------
// HTTP source
// ---------------------------------------------------------------------------

// DefaultHTTPTimeout matches the dashboard's request timeout.
const DefaultHTTPTimeout = 10 * time.Second

const maxBodyBytes = 32 << 20

// HTTPSource GETs a URL and returns the body.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{url: url, client: client}
}

func (s *HTTPSource) String() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("get %s: unexpected status %d", s.url, resp.StatusCode)
	}
	return string(body), nil
}
