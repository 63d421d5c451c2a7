// Package parallel provides the data-parallel loop the stages use to fan a
// row or channel range out over a bounded number of goroutines.
//
// A Pool is a handle carried in stage options; there is no process-wide
// worker setting.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest range handed to a single goroutine.
const minChunk = 16

// Pool bounds the number of goroutines a For call may use.
type Pool struct {
	workers int
}

// New returns a pool running at most workers goroutines per For call.
// workers <= 0 means runtime.GOMAXPROCS(0).
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Serial returns a pool that runs every loop on the calling goroutine.
func Serial() *Pool {
	return &Pool{workers: 1}
}

// Workers returns the goroutine bound.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// For calls fn over disjoint half-open ranges covering [0, n) and returns
// once all of them finished. fn must not touch indices outside its range.
// A nil pool runs serially.
func (p *Pool) For(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}

	workers := p.Workers()
	if workers <= 1 || n <= minChunk {
		fn(0, n)
		return
	}

	chunks := (n + minChunk - 1) / minChunk
	if chunks > workers {
		chunks = workers
	}
	size := (n + chunks - 1) / chunks

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
