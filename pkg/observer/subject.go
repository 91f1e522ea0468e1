// Package observer provides a small typed publish/subscribe hub.
package observer

import (
	"context"
	"slices"
	"sync"
)

// Observer defines the callback contract for receiving published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a standalone function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher publishes events to downstream observers.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

// Subscriber registers observers and hands back a function that removes them again.
type Subscriber[T any] interface {
	Attach(Observer[T]) (detach func())
}

type subscription[T any] struct {
	obs Observer[T]
	id  uint64
}

// Subject delivers each event to every attached observer, in attach order, on the publishing goroutine.
type Subject[T any] struct {
	onError func(error)
	subs    []subscription[T]
	mu      sync.RWMutex
	nextID  uint64
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	for _, o := range observers {
		s.Attach(o)
	}
	return s
}

// Publish invokes every observer with the provided event.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}

	s.mu.RLock()
	subs := slices.Clone(s.subs)
	errHandler := s.onError
	s.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.obs.Notify(ctx, evt); err != nil && errHandler != nil {
			errHandler(err)
		}
	}
}

// Attach registers an observer. Calling the returned func more than once is harmless.
func (s *Subject[T]) Attach(obs Observer[T]) func() {
	if s == nil || obs == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, obs: obs})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.detach(id) })
	}
}

func (s *Subject[T]) detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = slices.DeleteFunc(s.subs, func(sub subscription[T]) bool { return sub.id == id })
}

// Len returns the number of attached observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// SetErrorHandler configures a callback for observer failures.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
