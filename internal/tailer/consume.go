package tailer

import (
	"time"

	"go.uber.org/zap"
)

// DefaultSaveInterval is how often Consume writes the checkpoint to disk.
const DefaultSaveInterval = 5 * time.Second

// Handler processes one line and returns the log header still waiting for
// its message line, or "" when nothing is pending.
type Handler func(text string) (pending string)

// Consume hands every line to handle. After each line the checkpoint for
// path records the offset just past it together with the pending header
// handle returned, so a saved position never splits a header from the lines
// already applied. The checkpoint is saved every interval and once more
// when lines is closed.
func Consume(lines <-chan Line, ckpt *Checkpoint, path string, interval time.Duration, handle Handler, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	save := func() {
		if err := ckpt.Save(); err != nil {
			logger.Warn("checkpoint save failed", zap.Error(err))
		}
	}
	defer save()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			pending := handle(line.Text)
			ckpt.Set(path, Position{Offset: line.Offset, Pending: pending})

		case <-ticker.C:
			save()
		}
	}
}
