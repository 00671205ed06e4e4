// Package util - shared helpers for partitioned work, logging and loading annotation files.
package util

import (
	"runtime"
	"sync"
)

// minPartition is the smallest number of items worth handing to a goroutine.
const minPartition = 64

// Parallel splits [0, dataSize) into contiguous partitions and runs fn on each
// partition concurrently, one goroutine per CPU core.
//
// Small inputs run serially on the calling goroutine. fn must only write to
// the indices inside its own partition.
//
// Arguments:
//   - dataSize: The number of items to process.
//   - fn: The partition worker, called with a half-open range.
//
// @example
//
//	Parallel(len(boxes), func(start, end int) {
//	    for i := start; i < end; i++ {
//	        out[i] = IoU(box, boxes[i])
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	ParallelN(dataSize, runtime.NumCPU(), fn)
}

// ParallelN is Parallel with an explicit upper bound on the number of goroutines.
func ParallelN(dataSize, workers int, fn func(partStart, partEnd int)) {
	if dataSize <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if maxWorkers := dataSize / minPartition; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		// Last partition picks up the remainder.
		if i == workers-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}

// ForEach runs fn for every index in [0, n) on at most workers goroutines.
//
// Unlike ParallelN it does not apply a minimum partition size, so it suits a
// handful of expensive items such as per-class evaluations.
func ForEach(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
