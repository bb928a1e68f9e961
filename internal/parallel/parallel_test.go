package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRangeVisitsEveryIndexExactlyOnce(t *testing.T) {
	t.Parallel()

	const n = 997 // prime, to stress uneven chunk division
	var mu sync.Mutex
	seen := make([]int, n)

	err := Range(n, func(i int) error {
		mu.Lock()
		seen[i]++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("index %d visited %d times, want 1", i, count)
		}
	}
}

func TestRangeZeroIsNoop(t *testing.T) {
	t.Parallel()

	called := false
	if err := Range(0, func(int) error { called = true; return nil }); err != nil {
		t.Fatalf("Range: %v", err)
	}
	if called {
		t.Fatalf("fn should never be called for n=0")
	}
}

func TestRangeSmallerThanWorkerCount(t *testing.T) {
	t.Parallel()

	var count int32
	err := Range(1, func(i int) error {
		if i != 0 {
			t.Errorf("expected index 0, got %d", i)
		}
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fn called exactly once, got %d", count)
	}
}

func TestRangePropagatesFirstError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	err := Range(50, func(i int) error {
		if i == 10 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected Range to propagate the sentinel error, got %v", err)
	}
}
