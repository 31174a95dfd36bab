package window

import (
	"reflect"
	"sync"
	"testing"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestLastTruncates(t *testing.T) {
	got := Last(seq(75), 50)

	if len(got) != 50 {
		t.Fatalf("expected 50 records, got %d", len(got))
	}
	if got[0] != 25 || got[49] != 74 {
		t.Errorf("expected 25..74, got %d..%d", got[0], got[49])
	}
}

func TestLastShortInput(t *testing.T) {
	in := seq(3)
	got := Last(in, 30)

	if !reflect.DeepEqual(got, in) {
		t.Errorf("expected %v, got %v", in, got)
	}

	// Result must not alias the input.
	got[0] = 99
	if in[0] != 0 {
		t.Error("expected Last to return a copy")
	}
}

func TestLastProperties(t *testing.T) {
	for n := 0; n < 20; n++ {
		for k := 0; k < 25; k++ {
			once := Last(seq(n), k)
			twice := Last(once, k)

			if !reflect.DeepEqual(once, twice) {
				t.Errorf("n=%d k=%d: not idempotent: %v vs %v", n, k, once, twice)
			}
			want := n
			if k < n {
				want = k
			}
			if len(once) != want {
				t.Errorf("n=%d k=%d: expected len %d, got %d", n, k, want, len(once))
			}
		}
	}
}

func TestLastNonPositive(t *testing.T) {
	if got := Last(seq(5), 0); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if got := Last(seq(5), -3); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1, 2)
	r.Push(3, 4, 5)

	if got := r.Snapshot(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if r.Len() != 3 || r.Cap() != 3 {
		t.Errorf("expected len 3 cap 3, got len %d cap %d", r.Len(), r.Cap())
	}
}

func TestRingReplace(t *testing.T) {
	r := NewRing[int](4)
	r.Push(100, 200)
	r.Replace(seq(10))

	if got := r.Snapshot(); !reflect.DeepEqual(got, []int{6, 7, 8, 9}) {
		t.Errorf("expected [6 7 8 9], got %v", got)
	}
	if got := r.Snapshot(); !reflect.DeepEqual(got, Last(seq(10), 4)) {
		t.Errorf("expected ring to match Last, got %v", got)
	}
}

func TestRingZeroCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1, 2, 3)

	if r.Len() != 0 {
		t.Errorf("expected empty ring, got %d", r.Len())
	}
}

func TestRingConcurrentReaders(t *testing.T) {
	r := NewRing[int](50)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := r.Snapshot()
				for k := 1; k < len(snap); k++ {
					if snap[k] != snap[k-1]+1 {
						t.Errorf("snapshot out of order: %v", snap)
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		r.Push(i)
	}
	wg.Wait()
}
