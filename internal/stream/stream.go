// Package stream provides latest-wins subscriptions for state streams such
// as the current identity or the current task set.
package stream

import "sync"

// Subscription delivers values on a channel with a buffer of one. When the
// consumer falls behind, the pending value is replaced by the newer one, so
// publishers never block and the most recent state is never dropped.
//
// A closed Subscription cannot be reused.
type Subscription[T any] struct {
	mu      sync.Mutex
	ch      chan T
	done    chan struct{}
	closed  bool
	onClose []func()
}

func New[T any]() *Subscription[T] {
	return &Subscription[T]{
		ch:   make(chan T, 1),
		done: make(chan struct{}),
	}
}

// C returns the receive channel. It is closed after Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed once the subscription has been closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Publish hands v to the consumer. It reports false if the subscription is
// already closed.
func (s *Subscription[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- v:
		return true
	default:
	}

	// Replace the stale pending value.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
	return true
}

// OnClose registers fn to run once when the subscription closes. If it is
// already closed, fn runs immediately.
func (s *Subscription[T]) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	hooks := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
