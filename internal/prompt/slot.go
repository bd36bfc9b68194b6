// Package prompt holds pending user-interaction requests.
//
// A Slot allows at most one request in flight. The request is resolved exactly
// once, by an answer, a cancellation, a failure or the waiter's context.
package prompt

import (
	"context"
	"errors"
	"sync"
)

// ErrInProgress is returned by Begin while the slot is occupied.
var ErrInProgress = errors.New("prompt already in progress")

// Slot guards a single prompt type.
type Slot[T any] struct {
	mu      sync.Mutex
	pending *Request[T]
}

// Begin claims the slot.
func (s *Slot[T]) Begin() (*Request[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return nil, ErrInProgress
	}
	r := &Request[T]{slot: s, done: make(chan struct{})}
	s.pending = r
	return r, nil
}

// Pending returns the request in flight, or nil.
func (s *Slot[T]) Pending() *Request[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Slot[T]) release(r *Request[T]) {
	s.mu.Lock()
	if s.pending == r {
		s.pending = nil
	}
	s.mu.Unlock()
}

// Request is one pending prompt.
type Request[T any] struct {
	slot *Slot[T]
	once sync.Once
	done chan struct{}

	value     T
	cancelled bool
	err       error
}

// Resolve completes the request with an answer. It reports whether this call
// was the one that resolved it.
func (r *Request[T]) Resolve(v T) bool {
	return r.finish(func() { r.value = v })
}

// Cancel completes the request without an answer.
func (r *Request[T]) Cancel() bool {
	return r.finish(func() { r.cancelled = true })
}

// Fail completes the request with an error.
func (r *Request[T]) Fail(err error) bool {
	return r.finish(func() { r.err = err })
}

func (r *Request[T]) finish(set func()) bool {
	resolved := false
	r.once.Do(func() {
		set()
		resolved = true
		r.slot.release(r)
		close(r.done)
	})
	return resolved
}

// Done is closed once the request is resolved.
func (r *Request[T]) Done() <-chan struct{} { return r.done }

// Wait blocks until the request is resolved. ok is false on cancellation.
// If ctx ends first the request is cancelled and ctx's error returned.
func (r *Request[T]) Wait(ctx context.Context) (v T, ok bool, err error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		if r.Cancel() {
			return v, false, ctx.Err()
		}
		<-r.done
	}
	if r.err != nil {
		return v, false, r.err
	}
	if r.cancelled {
		return v, false, nil
	}
	return r.value, true, nil
}
