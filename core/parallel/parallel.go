// Package parallel runs independent units of work on a bounded number of
// goroutines. Callers write results into per-index slots, so the outcome
// never depends on scheduling order.
package parallel

import (
	"runtime"
	"sync"
)

// Workers normalises a requested worker count: values < 1 mean one per CPU,
// and the count never exceeds the number of items.
func Workers(requested, items int) int {
	n := requested
	if n < 1 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Parallelize divides items into contiguous ranges, one per worker, and
// executes fn(start, end) for each range concurrently.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	numWorkers := Workers(workers, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}

// ForEach calls fn(i) for every i in [0, items) using a pool of workers that
// pull indices from a shared queue. Unlike Parallelize it balances uneven
// work such as candidates with very different fit times.
func ForEach(items, workers int, fn func(i int)) {
	if items == 0 {
		return
	}
	numWorkers := Workers(workers, items)
	if numWorkers == 1 {
		for i := 0; i < items; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < items; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
