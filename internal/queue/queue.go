// Package queue implements the bounded hand-off between a forwarder and a
// polling consumer.
//
// The queue is split into a Sender and a Receiver half. Values move through a
// buffered channel; the only other shared state is two close signals, one per
// side, so the sender can tell when nobody will read again.
package queue

import (
	"context"
	"sync"

	"firestige.xyz/posebridge/internal/core"
)

// DefaultCapacity is the number of pending items when none is configured.
const DefaultCapacity = 32

type shared[T any] struct {
	items chan T
	gone  chan struct{} // closed when the receiver is dropped
	done  chan struct{} // closed when the sender is closed

	sendOnce sync.Once
	recvOnce sync.Once
}

// Sender is the producing half of a queue.
type Sender[T any] struct {
	q *shared[T]
}

// Receiver is the consuming half of a queue.
type Receiver[T any] struct {
	q *shared[T]
}

// New creates a queue holding at most capacity pending items.
// A non-positive capacity selects DefaultCapacity.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &shared[T]{
		items: make(chan T, capacity),
		gone:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// Send enqueues v, blocking while the queue is full.
// It returns core.ErrReceiverGone once the receiver has been closed and
// ctx.Err() if ctx ends first.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	select {
	case <-s.q.gone:
		return core.ErrReceiverGone
	default:
	}

	select {
	case s.q.items <- v:
		return nil
	case <-s.q.gone:
		return core.ErrReceiverGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the end of the stream. Items already queued stay readable.
// Close must only be called by the single goroutine that sends.
func (s *Sender[T]) Close() {
	s.q.sendOnce.Do(func() {
		close(s.q.done)
		close(s.q.items)
	})
}

// ReceiverGone is closed once the receiver has been dropped.
func (s *Sender[T]) ReceiverGone() <-chan struct{} {
	return s.q.gone
}

// Len returns the number of queued items.
func (s *Sender[T]) Len() int { return len(s.q.items) }

// Cap returns the queue bound.
func (s *Sender[T]) Cap() int { return cap(s.q.items) }

// TryRecv dequeues the oldest item without blocking.
func (r *Receiver[T]) TryRecv() (T, bool) {
	select {
	case v, ok := <-r.q.items:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Recv dequeues the oldest item, blocking until one is available.
// The boolean is false when the sender closed the queue and it is drained,
// or when ctx ended.
func (r *Receiver[T]) Recv(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-r.q.items:
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Close drops the receiver. Blocked and future Sends return
// core.ErrReceiverGone.
func (r *Receiver[T]) Close() {
	r.q.recvOnce.Do(func() { close(r.q.gone) })
}

// Closed reports whether the sender has closed the queue and every item has
// been received.
func (r *Receiver[T]) Closed() bool {
	select {
	case <-r.q.done:
		return len(r.q.items) == 0
	default:
		return false
	}
}

// Len returns the number of queued items.
func (r *Receiver[T]) Len() int { return len(r.q.items) }
