// Package window keeps the most recent N records of a stream.
package window

import "sync"

// Last returns the final k records of in, oldest first, as a new slice.
// Inputs shorter than k are copied unchanged; k <= 0 yields an empty slice.
func Last[T any](in []T, k int) []T {
	if k <= 0 {
		return []T{}
	}
	start := 0
	if len(in) > k {
		start = len(in) - k
	}
	out := make([]T, len(in)-start)
	copy(out, in[start:])
	return out
}

// Ring is a fixed-capacity buffer that overwrites its oldest record.
// It is safe for one writer and any number of concurrent readers.
type Ring[T any] struct {
	mu    sync.RWMutex
	buf   []T
	start int
	size  int
}

// NewRing creates a Ring holding at most capacity records.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends records, evicting the oldest once the ring is full.
func (r *Ring[T]) Push(records ...T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push(records)
}

func (r *Ring[T]) push(records []T) {
	n := len(r.buf)
	if n == 0 {
		return
	}
	for _, rec := range records {
		if r.size < n {
			r.buf[(r.start+r.size)%n] = rec
			r.size++
			continue
		}
		r.buf[r.start] = rec
		r.start = (r.start + 1) % n
	}
}

// Replace discards the current contents and keeps the last records of in.
func (r *Ring[T]) Replace(in []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.size = 0, 0
	r.push(Last(in, len(r.buf)))
}

// Snapshot returns a copy of the buffered records, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len reports how many records are buffered.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap reports the ring capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }
