package upstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedStatus struct {
	mu    sync.Mutex
	steps []bool
	fail  int
}

func (s *scriptedStatus) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return Status{}, errors.New("unreachable")
	}
	gen := s.steps[0]
	if len(s.steps) > 1 {
		s.steps = s.steps[1:]
	}
	return Status{IsGenerating: gen}, nil
}

func TestWatchStatusReportsFlips(t *testing.T) {
	src := &scriptedStatus{steps: []bool{true, true, false, false, true}, fail: 1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var flips []bool
	var errs int
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchStatus(ctx, src, time.Millisecond, func(prev, cur Status) {
			mu.Lock()
			flips = append(flips, cur.IsGenerating)
			if len(flips) == 2 {
				cancel()
			}
			mu.Unlock()
		}, func(error) {
			mu.Lock()
			errs++
			mu.Unlock()
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not observe two flips")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flips) != 2 || flips[0] != false || flips[1] != true {
		t.Errorf("expected flips [false true], got %v", flips)
	}
	if errs != 1 {
		t.Errorf("expected 1 error, got %d", errs)
	}
}
