package forwarder

import (
	"log/slog"
	"sync/atomic"
)

// Stats contains per-forwarder counters.
type Stats struct {
	Payloads       atomic.Uint64
	EmptyFrames    atomic.Uint64
	Decoded        atomic.Uint64
	DecodeFailures atomic.Uint64
	Enqueued       atomic.Uint64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Payloads       uint64 `json:"payloads" yaml:"payloads"`
	EmptyFrames    uint64 `json:"empty_frames" yaml:"empty_frames"`
	Decoded        uint64 `json:"decoded" yaml:"decoded"`
	DecodeFailures uint64 `json:"decode_failures" yaml:"decode_failures"`
	Enqueued       uint64 `json:"enqueued" yaml:"enqueued"`
}

// Snapshot reads all counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Payloads:       s.Payloads.Load(),
		EmptyFrames:    s.EmptyFrames.Load(),
		Decoded:        s.Decoded.Load(),
		DecodeFailures: s.DecodeFailures.Load(),
		Enqueued:       s.Enqueued.Load(),
	}
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.Payloads.Store(0)
	s.EmptyFrames.Store(0)
	s.Decoded.Store(0)
	s.DecodeFailures.Store(0)
	s.Enqueued.Store(0)
}

// LogValue implements slog.LogValuer.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("payloads", s.Payloads),
		slog.Uint64("empty", s.EmptyFrames),
		slog.Uint64("decoded", s.Decoded),
		slog.Uint64("decode_failures", s.DecodeFailures),
		slog.Uint64("enqueued", s.Enqueued),
	)
}
