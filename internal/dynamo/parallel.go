package dynamo

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Workers resolves a requested worker count, falling back to GOMAXPROCS.
func Workers(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// ParallelFor executes fn over [0, n) split into contiguous chunks, one per
// worker. The worker index lets callers address private scratch objects.
func ParallelFor(n, workers int, fn func(worker, start, end int)) {
	if n <= 0 {
		return
	}
	workers = min(Workers(workers), n)
	if workers <= 1 {
		fn(0, 0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= n {
			break
		}
		end := min(start+chunkSize, n)

		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			fn(w, s, e)
		}(w, start, end)
	}

	wg.Wait()
}

// ForEach hands out indices of [0, n) through a shared counter so that fast
// workers pick up the remaining tasks. Each index is visited exactly once.
func ForEach(n, workers int, fn func(worker, index int)) {
	if n <= 0 {
		return
	}
	workers = min(Workers(workers), n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(0, i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= n {
					return
				}
				fn(w, i)
			}
		}(w)
	}
	wg.Wait()
}
