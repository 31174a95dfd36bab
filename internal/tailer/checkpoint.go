package tailer

import (
	"encoding/json"
	"os"
	"sync"
)

// Position is where following a file stopped: the byte offset after the last
// complete line, and a log header still waiting for its message line.
type Position struct {
	Offset  int64  `json:"offset"`
	Pending string `json:"pending,omitempty"`
}

// checkpointData is the on-disk JSON structure for persisted positions.
type checkpointData struct {
	Files map[string]Position `json:"files"`
}

// Checkpoint persists follow positions so `follow` can resume after a restart.
type Checkpoint struct {
	mu   sync.RWMutex
	path string
	data checkpointData
}

// NewCheckpoint creates or loads a checkpoint file at the given path.
// An empty path keeps positions in memory only.
func NewCheckpoint(path string) (*Checkpoint, error) {
	c := &Checkpoint{
		path: path,
		data: checkpointData{Files: make(map[string]Position)},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &c.data); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}
	if c.data.Files == nil {
		c.data.Files = make(map[string]Position)
	}

	return c, nil
}

// Get returns the saved position for a file path.
func (c *Checkpoint) Get(path string) (Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data.Files[path]
	return v, ok
}

// Set records the current position for a file path.
func (c *Checkpoint) Set(path string, pos Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Files[path] = pos
}

// Save writes the checkpoint data to disk atomically.
func (c *Checkpoint) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first, then rename for atomicity.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
