package provider

import (
	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/queue"
)

// Queue is a DetectionProvider fed by a forwarder through a bounded queue.
type Queue struct {
	rx *queue.Receiver[core.DetectionResult]
}

// NewQueue wraps the receiving half of a queue.
func NewQueue(rx *queue.Receiver[core.DetectionResult]) *Queue {
	return &Queue{rx: rx}
}

// Poll makes a single non-blocking dequeue attempt.
func (q *Queue) Poll() (core.DetectionResult, bool) {
	r, ok := q.rx.TryRecv()
	observePoll(KindQueue, ok)
	return r, ok
}

// Pending returns the number of results waiting to be polled.
func (q *Queue) Pending() int { return q.rx.Len() }

// Exhausted reports whether the producing side has stopped and every result
// has been polled.
func (q *Queue) Exhausted() bool { return q.rx.Closed() }

// Close drops the receiver. The forwarder feeding the queue stops at its
// next enqueue attempt.
func (q *Queue) Close() { q.rx.Close() }
