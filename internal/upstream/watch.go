package upstream

import (
	"context"
	"time"
)

// StatusSource reports the generator state.
type StatusSource interface {
	Status(ctx context.Context) (Status, error)
}

// WatchStatus polls src every interval and calls onChange whenever the
// generating flag flips. The first successful poll only sets the baseline.
// Failed polls are passed to onError when it is non-nil.
func WatchStatus(ctx context.Context, src StatusSource, interval time.Duration, onChange func(prev, cur Status), onError func(error)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		prev Status
		seen bool
	)
	for {
		st, err := src.Status(ctx)
		switch {
		case err != nil:
			if onError != nil && ctx.Err() == nil {
				onError(err)
			}
		case seen && st.IsGenerating != prev.IsGenerating:
			onChange(prev, st)
			prev = st
		default:
			prev, seen = st, true
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
