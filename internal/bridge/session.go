package bridge

import (
	"log/slog"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/forwarder"
	"firestige.xyz/posebridge/internal/provider"
)

// Session is one composed provider. A queue session also owns the handle of
// the forwarder feeding it.
type Session struct {
	ID       string
	Kind     string // transport kind, or "synthetic"
	Remote   string // peer address in listen mode
	Provider provider.DetectionProvider

	queue     *provider.Queue
	forwarder *forwarder.Forwarder[core.DetectionResult]
}

// Done is closed when the forwarder has stopped. It is nil for synthetic
// sessions, which never end on their own.
func (s *Session) Done() <-chan struct{} {
	if s.forwarder == nil {
		return nil
	}
	return s.forwarder.Done()
}

// Exhausted reports whether the producer is gone and every result has been
// polled. Synthetic sessions are never exhausted.
func (s *Session) Exhausted() bool {
	return s.queue != nil && s.queue.Exhausted()
}

// Stats returns the forwarder counters; zero for synthetic sessions.
func (s *Session) Stats() forwarder.Snapshot {
	if s.forwarder == nil {
		return forwarder.Snapshot{}
	}
	return s.forwarder.Stats()
}

// Close drops the provider's queue, which stops the forwarder and closes
// the transport, and waits for that to finish.
func (s *Session) Close() {
	if s.queue == nil {
		return
	}
	s.queue.Close()
	s.forwarder.Wait()
	slog.Info("session closed", "session", s.ID, "stats", s.forwarder.Stats())
}
