package buffer

import "sync"

// Pool recycles sample storage between stages, keyed by slice length.
// It is safe for concurrent use.
type Pool[T Sample] struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// NewPool returns an empty pool.
func NewPool[T Sample]() *Pool[T] {
	return &Pool[T]{pools: make(map[int]*sync.Pool)}
}

func (p *Pool[T]) get(n int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.pools[n]
	if !ok {
		sp = &sync.Pool{}
		p.pools[n] = sp
	}
	return sp
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if v, ok := p.get(n).Get().(*[]T); ok && len(*v) == n {
		s := *v
		clear(s)
		return s
	}
	return make([]T, n)
}

// Put hands s back to the pool. The caller must not use s afterwards.
func (p *Pool[T]) Put(s []T) {
	if s == nil {
		return
	}
	p.get(len(s)).Put(&s)
}
