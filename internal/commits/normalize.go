// Package commits maps commit objects from the static dataset and the
// upstream commits endpoint onto model.CommitRecord.
package commits

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/jmespath/go-jmespath"
)

// DefaultAuthor is used when a commit carries no author under any alias.
const DefaultAuthor = "Unknown"

// Alias paths per canonical field, tried in order. The first path that yields
// a non-empty scalar wins. Paths are JMESPath so nested shapes such as the
// GitHub REST commit object resolve without extra code.
var (
	aliasHash    = compile("hash", "sha")
	aliasMessage = compile("message", "commit_message", "commit.message")
	aliasAuthor  = compile("author", "author_name", "author.name", "commit.author.name")
	aliasDate    = compile("date", "timestamp", "commit.author.date")
	aliasURL     = compile("url", "html_url")
	aliasFiles   = compile("files", "modified_files")
	aliasFile    = compile("filename", "name", "path")

	aliasAdditions = compile("changes.additions", "stats.additions", "additions")
	aliasDeletions = compile("changes.deletions", "stats.deletions", "deletions")
	aliasTotal     = compile("changes.total", "stats.total", "total")
)

func compile(paths ...string) []*jmespath.JMESPath {
	out := make([]*jmespath.JMESPath, len(paths))
	for i, p := range paths {
		out[i] = jmespath.MustCompile(p)
	}
	return out
}

// Normalize builds a CommitRecord from one decoded JSON object. It never
// fails: missing fields take their defaults, with date defaulting to now.
func Normalize(obj map[string]any, source string, now time.Time) model.CommitRecord {
	rec := model.CommitRecord{
		Hash:    scalar(obj, aliasHash),
		Message: scalar(obj, aliasMessage),
		Author:  scalar(obj, aliasAuthor),
		Date:    scalar(obj, aliasDate),
		URL:     scalar(obj, aliasURL),
		Files:   files(obj),
		Changes: changes(obj),
		Source:  source,
	}
	if rec.Author == "" {
		rec.Author = DefaultAuthor
	}
	if rec.Date == "" {
		rec.Date = now.UTC().Format(time.RFC3339)
	}
	return rec
}

// NormalizeAll normalizes every object element of list; other elements are skipped.
func NormalizeAll(list []any, source string, now time.Time) []model.CommitRecord {
	out := make([]model.CommitRecord, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Normalize(obj, source, now))
	}
	return out
}

// ParseJSON decodes either {"commits": [...]} or a bare array of commits.
func ParseJSON(data []byte, source string, now time.Time) ([]model.CommitRecord, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode commits: %w", err)
	}

	switch v := doc.(type) {
	case []any:
		return NormalizeAll(v, source, now), nil
	case map[string]any:
		list, _ := v["commits"].([]any)
		return NormalizeAll(list, source, now), nil
	default:
		return []model.CommitRecord{}, nil
	}
}

// scalar returns the first alias that resolves to a non-empty string or number.
func scalar(obj any, paths []*jmespath.JMESPath) string {
	for _, p := range paths {
		v, err := p.Search(obj)
		if err != nil {
			continue
		}
		if s, ok := asString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// files accepts bare filenames and objects carrying filename/name/path.
func files(obj map[string]any) []string {
	out := []string{}
	for _, p := range aliasFiles {
		v, err := p.Search(obj)
		if err != nil {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if name := scalar(item, aliasFile); name != "" {
				out = append(out, name)
				continue
			}
			if s, ok := asString(item); ok && s != "" {
				out = append(out, s)
			}
		}
		break
	}
	return out
}

func changes(obj map[string]any) model.ChangeSummary {
	var c model.ChangeSummary
	c.Additions, _ = count(obj, aliasAdditions)
	c.Deletions, _ = count(obj, aliasDeletions)
	total, ok := count(obj, aliasTotal)
	if !ok {
		total = c.Additions + c.Deletions
	}
	c.Total = total
	return c
}

// count reports false when no alias holds a number.
func count(obj map[string]any, paths []*jmespath.JMESPath) (int, bool) {
	s := scalar(obj, paths)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}
