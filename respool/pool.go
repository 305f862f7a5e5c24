// Package respool is the generic keyed resource pool spec.md §1 names as
// one of the concurrency primitives the server composes, ported from
// original_source/src/pool/resource_pool.hpp. The original is a singleton
// (get_instance); per §9's design note on singletons with process-wide
// state, this is constructed explicitly and passed by reference instead.
package respool

import (
	"sync"
	"sync/atomic"

	"github.com/nikandfor/errors"
)

// ErrExhausted is returned by Get when the pool is already at max and has
// nothing free to hand out.
var ErrExhausted = errors.New("respool: exhausted")

// Pool manages up to max resources of type T, pre-allocating min of them
// at construction. Resources handed out by Get are not replaced, so the
// idle count can fall below min.
type Pool[T any] struct {
	mu    sync.Mutex
	free  []T
	alloc func() (T, error)
	release func(T)

	min, max   int
	totalCount int64 // atomic
}

// New constructs a Pool and eagerly allocates min resources.
func New[T any](min, max int, alloc func() (T, error), release func(T)) (*Pool[T], error) {
	if max < min {
		max = min
	}
	p := &Pool[T]{alloc: alloc, release: release, min: min, max: max}
	for i := 0; i < min; i++ {
		r, err := alloc()
		if err != nil {
			return nil, errors.Wrap(err, "respool: initial alloc")
		}
		p.free = append(p.free, r)
		atomic.AddInt64(&p.totalCount, 1)
	}
	return p, nil
}

// Leased is a resource on loan from the pool. Close must be called exactly
// once to return it.
type Leased[T any] struct {
	pool  *Pool[T]
	value T
	shut  bool
}

// Value returns the leased resource.
func (l *Leased[T]) Value() T { return l.value }

// Close returns the resource to the pool, or releases it outright if the
// pool is already holding at least max idle resources.
func (l *Leased[T]) Close() {
	if l.shut {
		return
	}
	l.shut = true
	l.pool.recycle(l.value)
}

// Get returns a resource from the free list, or allocates a new one if
// below max. Returns ErrExhausted once total allocations reach max and
// none are free.
func (p *Pool[T]) Get() (*Leased[T], error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return &Leased[T]{pool: p, value: r}, nil
	}
	total := atomic.LoadInt64(&p.totalCount)
	if int(total) >= p.max {
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	p.mu.Unlock()

	r, err := p.alloc()
	if err != nil {
		return nil, errors.Wrap(err, "respool: alloc")
	}
	atomic.AddInt64(&p.totalCount, 1)
	return &Leased[T]{pool: p, value: r}, nil
}

func (p *Pool[T]) recycle(r T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.max {
		atomic.AddInt64(&p.totalCount, -1)
		if p.release != nil {
			p.release(r)
		}
		return
	}
	p.free = append(p.free, r)
}

// Stats reports the pool's current occupancy.
type Stats struct {
	Free, Total, Min, Max int
}

// Stats returns a point-in-time snapshot of the pool's occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Free:  len(p.free),
		Total: int(atomic.LoadInt64(&p.totalCount)),
		Min:   p.min,
		Max:   p.max,
	}
}

// Close releases every idle resource currently held by the pool.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.release != nil {
		for _, r := range p.free {
			p.release(r)
		}
	}
	p.free = nil
	atomic.StoreInt64(&p.totalCount, 0)
}
