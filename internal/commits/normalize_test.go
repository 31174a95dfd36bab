package commits

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)

func TestNormalizeAliases(t *testing.T) {
	obj := map[string]any{
		"sha":            "abcd1234",
		"commit_message": "fix bug",
		"author_name":    "bob",
	}

	got := Normalize(obj, model.SourceUpstream, fixedNow)

	want := model.CommitRecord{
		Hash:    "abcd1234",
		Message: "fix bug",
		Author:  "bob",
		Date:    "2026-02-17T12:00:00Z",
		Files:   []string{},
		URL:     "",
		Source:  model.SourceUpstream,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected record (-want +got):\n%s", diff)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	got := Normalize(map[string]any{"hash": "h1", "message": "m"}, model.SourceStaticFile, fixedNow)

	if got.Author != DefaultAuthor {
		t.Errorf("expected author %q, got %q", DefaultAuthor, got.Author)
	}
	if got.Date != fixedNow.Format(time.RFC3339) {
		t.Errorf("expected date %q, got %q", fixedNow.Format(time.RFC3339), got.Date)
	}
	if got.Files == nil {
		t.Error("expected non-nil files slice")
	}
	if got.Changes != (model.ChangeSummary{}) {
		t.Errorf("expected zero changes, got %+v", got.Changes)
	}
}

func TestNormalizeFilesShapes(t *testing.T) {
	obj := map[string]any{
		"hash": "h",
		"files": []any{
			"README.md",
			map[string]any{"filename": "main.go", "code": "package main"},
			map[string]any{"name": "go.mod"},
			map[string]any{"other": "ignored"},
			42.0,
		},
	}

	got := Normalize(obj, "", fixedNow).Files

	want := []string{"README.md", "main.go", "go.mod", "42"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected files (-want +got):\n%s", diff)
	}
}

func TestNormalizeChanges(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
		want model.ChangeSummary
	}{
		{
			name: "additions and deletions",
			obj:  map[string]any{"changes": map[string]any{"additions": 10.0, "deletions": 4.0}},
			want: model.ChangeSummary{Additions: 10, Deletions: 4, Total: 14},
		},
		{
			name: "explicit total",
			obj:  map[string]any{"changes": map[string]any{"additions": 1.0, "deletions": 2.0, "total": 7.0}},
			want: model.ChangeSummary{Additions: 1, Deletions: 2, Total: 7},
		},
		{
			name: "github stats",
			obj:  map[string]any{"stats": map[string]any{"additions": 3.0, "deletions": 0.0, "total": 3.0}},
			want: model.ChangeSummary{Additions: 3, Deletions: 0, Total: 3},
		},
		{
			name: "absent",
			obj:  map[string]any{},
			want: model.ChangeSummary{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.obj, "", fixedNow).Changes; got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNormalizeGitHubShape(t *testing.T) {
	obj := map[string]any{
		"sha":      "9f1c",
		"html_url": "https://github.com/acme/api/commit/9f1c",
		"author":   map[string]any{"login": "octo"},
		"commit": map[string]any{
			"message": "bump deps",
			"author":  map[string]any{"name": "Octo Cat", "date": "2026-01-02T03:04:05Z"},
		},
	}

	got := Normalize(obj, model.SourceUpstream, fixedNow)

	if got.Message != "bump deps" {
		t.Errorf("expected message 'bump deps', got %q", got.Message)
	}
	if got.Author != "Octo Cat" {
		t.Errorf("expected author 'Octo Cat', got %q", got.Author)
	}
	if got.Date != "2026-01-02T03:04:05Z" {
		t.Errorf("expected commit date, got %q", got.Date)
	}
	if got.URL != "https://github.com/acme/api/commit/9f1c" {
		t.Errorf("unexpected url %q", got.URL)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"commits":[{"hash":"a","message":"one","author":"x","date":"2026-01-01T00:00:00Z","url":"u"},"junk",{"hash":"b","message":"two"}]}`

	got, err := ParseJSON([]byte(doc), model.SourceStaticFile, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(got))
	}
	if got[0].URL != "u" || got[1].Author != DefaultAuthor {
		t.Errorf("unexpected commits: %+v", got)
	}

	arr, err := ParseJSON([]byte(`[{"sha":"c"}]`), "", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(arr) != 1 || arr[0].Hash != "c" {
		t.Errorf("expected bare array to parse, got %+v", arr)
	}

	if _, err := ParseJSON([]byte(`{not json`), "", fixedNow); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestStaticInfoAndHead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commit.json")
	if err := os.WriteFile(path, []byte(`{"commits":[{"hash":"1"},{"hash":"2"},{"hash":"3"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	info := StaticInfo(path)
	if !info.StaticDataAvailable || info.StaticCommitCount != 3 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info := StaticInfo(filepath.Join(dir, "missing.json")); info.StaticDataAvailable {
		t.Error("expected missing file to be unavailable")
	}

	recs, _ := ParseJSON([]byte(`{"commits":[{"hash":"1"},{"hash":"2"},{"hash":"3"}]}`), "", fixedNow)
	if got := Head(recs, 2); len(got) != 2 || got[1].Hash != "2" {
		t.Errorf("expected first two commits, got %+v", got)
	}
	if got := Head(recs, 0); len(got) != 3 {
		t.Errorf("expected all commits for k=0, got %d", len(got))
	}
}
