// Package observer fans events out to registered observers.
package observer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify calls f. A nil func is a no-op.
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

// Subject delivers every event to its observers in registration order.
// Publish may be called from many goroutines; it never blocks on Attach.
type Subject[T any] struct {
	observers atomic.Pointer[[]Observer[T]]
	onError   atomic.Pointer[func(error)]
	mu        sync.Mutex // serializes writers
}

// NewSubject returns a Subject with the given observers. Nil observers are skipped.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish notifies every observer. Observer errors go to the error handler, if any.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}
	list := s.observers.Load()
	if list == nil {
		return
	}
	onError := s.onError.Load()
	for _, obs := range *list {
		if err := obs.Notify(ctx, evt); err != nil && onError != nil {
			(*onError)(err)
		}
	}
}

// Attach appends observers.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []Observer[T]
	if cur := s.observers.Load(); cur != nil {
		next = append(next, *cur...)
	}
	for _, o := range observers {
		if o != nil {
			next = append(next, o)
		}
	}
	s.observers.Store(&next)
}

// Len reports the number of attached observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	if cur := s.observers.Load(); cur != nil {
		return len(*cur)
	}
	return 0
}

// SetErrorHandler sets the callback for observer failures; nil disables it.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	if fn == nil {
		s.onError.Store(nil)
		return
	}
	s.onError.Store(&fn)
}
