// Package parallel provides the data-parallel loop primitive used
// throughout the core (spec.md §5). It replaces the reference
// implementation's OpenMP "#pragma omp parallel for" regions with a
// bounded errgroup, one goroutine per CPU, each owning a contiguous
// row range.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Range runs fn(i) for every i in [0, n), fanning out across
// runtime.GOMAXPROCS(0) workers. It returns the first non-nil error
// reported by any fn call; the other workers still run to completion
// since spec.md §5 specifies no cancellation mechanism for the core.
func Range(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
