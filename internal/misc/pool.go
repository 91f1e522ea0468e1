package misc

import "sync"

// Resetter is implemented by values that can be cleared for reuse.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool that resets values on Put.
type Pool[T Resetter] struct {
	p       sync.Pool
	discard func(T) bool
}

// NewPool creates a Pool whose empty slots are filled by newFn.
func NewPool[T Resetter](newFn func() T) *Pool[T] {
	pl := &Pool[T]{}
	pl.p.New = func() any {
		if newFn != nil {
			return newFn()
		}
		var zero T
		return zero
	}
	return pl
}

// WithDiscard sets a predicate for values that should not be retained, such as oversized buffers.
func (pl *Pool[T]) WithDiscard(fn func(T) bool) *Pool[T] {
	pl.discard = fn
	return pl
}

// Get retrieves a value from the pool.
func (pl *Pool[T]) Get() T {
	if value, ok := pl.p.Get().(T); ok {
		return value
	}
	var zero T
	return zero
}

// Put resets v and returns it to the pool unless the discard predicate rejects it.
func (pl *Pool[T]) Put(v T) {
	if pl.discard != nil && pl.discard(v) {
		return
	}
	v.Reset()
	pl.p.Put(v)
}
