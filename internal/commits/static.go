package commits

import (
	"os"
	"time"

	"github.com/atikulmunna/logagent/internal/model"
)

// Info describes the bundled static commit dataset.
type Info struct {
	StaticDataAvailable bool `json:"static_data_available"`
	StaticCommitCount   int  `json:"static_commit_count"`
}

// StaticInfo reports whether the dataset at path can be read and how many
// commits it holds. Unreadable or malformed files report unavailable.
func StaticInfo(path string) Info {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Info{}
	}
	recs, err := ParseJSON(raw, model.SourceStaticFile, time.Now())
	if err != nil {
		return Info{}
	}
	return Info{StaticDataAvailable: true, StaticCommitCount: len(recs)}
}

// Head returns the first k commits (datasets list the newest first).
// k <= 0 returns every commit.
func Head(recs []model.CommitRecord, k int) []model.CommitRecord {
	if k <= 0 || k >= len(recs) {
		out := make([]model.CommitRecord, len(recs))
		copy(out, recs)
		return out
	}
	out := make([]model.CommitRecord, k)
	copy(out, recs[:k])
	return out
}
