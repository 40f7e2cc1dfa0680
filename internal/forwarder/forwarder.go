// Package forwarder moves decoded payloads from a transport into a bounded
// queue.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
	"firestige.xyz/posebridge/internal/queue"
	"firestige.xyz/posebridge/internal/transport"
)

// DecodeFunc turns one payload into a value. false means the payload is
// skipped.
type DecodeFunc[T any] func(payload []byte) (T, bool)

// Config contains forwarder configuration.
type Config[T any] struct {
	ID     string // used in logs
	Kind   string // transport kind, used as metrics label
	Stream transport.PayloadStream
	Queue  *queue.Sender[T]
	Decode DecodeFunc[T]
}

// Forwarder drives one PayloadStream until it ends or the queue's receiver
// is dropped. It owns the stream and the queue's sending half: both are
// closed when it stops.
type Forwarder[T any] struct {
	id     string
	kind   string
	stream transport.PayloadStream
	queue  *queue.Sender[T]
	decode DecodeFunc[T]

	stats   *Stats
	started atomic.Bool
	done    chan struct{}
}

// New creates a forwarder. Start runs it.
func New[T any](cfg Config[T]) (*Forwarder[T], error) {
	if cfg.Stream == nil {
		return nil, fmt.Errorf("forwarder: stream is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("forwarder: queue is required")
	}
	if cfg.Decode == nil {
		return nil, fmt.Errorf("forwarder: decode function is required")
	}
	if cfg.Kind == "" {
		cfg.Kind = "unknown"
	}

	return &Forwarder[T]{
		id:     cfg.ID,
		kind:   cfg.Kind,
		stream: cfg.Stream,
		queue:  cfg.Queue,
		decode: cfg.Decode,
		stats:  &Stats{},
		done:   make(chan struct{}),
	}, nil
}

// Spawn creates and starts a forwarder.
func Spawn[T any](ctx context.Context, cfg Config[T]) (*Forwarder[T], error) {
	f, err := New(cfg)
	if err != nil {
		return nil, err
	}
	f.Start(ctx)
	return f, nil
}

// Start runs the forwarding loop in its own goroutine. Cancelling ctx closes
// the stream under a pending read. Start may only be called once.
func (f *Forwarder[T]) Start(ctx context.Context) {
	if !f.started.CompareAndSwap(false, true) {
		slog.Warn("forwarder already started", "forwarder", f.id)
		return
	}
	go f.run(ctx)
}

// Done is closed once the forwarder has stopped and released its resources.
func (f *Forwarder[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the forwarder has stopped.
func (f *Forwarder[T]) Wait() { <-f.done }

// ID returns the forwarder id.
func (f *Forwarder[T]) ID() string { return f.id }

// Stats returns a snapshot of the forwarder counters.
func (f *Forwarder[T]) Stats() Snapshot { return f.stats.Snapshot() }

func (f *Forwarder[T]) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// A dropped receiver also ends a read that is still waiting for bytes.
	go func() {
		select {
		case <-f.queue.ReceiverGone():
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.ForwardersActive.WithLabelValues(f.kind).Inc()
	slog.Info("forwarder started", "forwarder", f.id, "transport", f.kind)

	defer func() {
		if err := f.stream.Close(); err != nil {
			slog.Debug("forwarder stream close", "forwarder", f.id, "error", err)
		}
		f.queue.Close()
		metrics.ForwardersActive.WithLabelValues(f.kind).Dec()
		close(f.done)
	}()

	f.loop(ctx)
}

func (f *Forwarder[T]) loop(ctx context.Context) {
	for {
		payload, ok := f.stream.NextPayload(ctx)
		if !ok {
			select {
			case <-f.queue.ReceiverGone():
				slog.Info("forwarder stopped, receiver gone", "forwarder", f.id, "stats", f.stats.Snapshot())
			default:
				slog.Info("forwarder stopped, end of stream", "forwarder", f.id, "stats", f.stats.Snapshot())
			}
			return
		}
		f.stats.Payloads.Add(1)

		if len(payload) == 0 {
			f.stats.EmptyFrames.Add(1)
			metrics.ForwarderResultsTotal.WithLabelValues(f.kind, metrics.OutcomeEmptyFrame).Inc()
			slog.Debug("forwarder skipped empty frame", "forwarder", f.id)
			continue
		}

		v, ok := f.decode(payload)
		if !ok {
			f.stats.DecodeFailures.Add(1)
			metrics.ForwarderResultsTotal.WithLabelValues(f.kind, metrics.OutcomeDecodeFailed).Inc()
			slog.Debug("forwarder skipped undecodable payload", "forwarder", f.id, "bytes", len(payload))
			continue
		}
		f.stats.Decoded.Add(1)

		start := time.Now()
		err := f.queue.Send(ctx, v)
		metrics.ForwarderEnqueueWaitSeconds.WithLabelValues(f.kind).Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			f.stats.Enqueued.Add(1)
			metrics.ForwarderResultsTotal.WithLabelValues(f.kind, metrics.OutcomeEnqueued).Inc()
		case errors.Is(err, core.ErrReceiverGone):
			slog.Info("forwarder stopped, receiver gone", "forwarder", f.id, "stats", f.stats.Snapshot())
			return
		default:
			slog.Info("forwarder stopped", "forwarder", f.id, "reason", err, "stats", f.stats.Snapshot())
			return
		}
	}
}
