package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
)

// Stream is a PayloadStream over one TCP connection.
type Stream struct {
	conn   net.Conn
	framer *Framer
	remote string

	ended     bool
	closeOnce sync.Once
}

// NewStream frames conn according to cfg.
func NewStream(conn net.Conn, cfg FrameConfig) *Stream {
	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return &Stream{
		conn:   conn,
		framer: NewFramer(conn, cfg),
		remote: remote,
	}
}

// NextPayload implements transport.PayloadStream.
func (s *Stream) NextPayload(ctx context.Context) ([]byte, bool) {
	if s.ended {
		return nil, false
	}
	if ctx.Err() != nil {
		s.end()
		return nil, false
	}

	// Unblock a pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	payload, err := s.framer.ReadPayload()
	if err != nil {
		s.logEnd(ctx, err)
		s.end()
		return nil, false
	}

	metrics.TransportPayloadsTotal.WithLabelValues(Kind).Inc()
	return payload, true
}

func (s *Stream) logEnd(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		slog.Debug("tcp stream cancelled", "remote", s.remote)
	case errors.Is(err, io.EOF):
		slog.Info("tcp stream closed by peer", "remote", s.remote)
	case errors.Is(err, io.ErrUnexpectedEOF):
		slog.Info("tcp stream ended mid-frame", "remote", s.remote)
	case errors.Is(err, net.ErrClosed):
		slog.Debug("tcp stream closed locally", "remote", s.remote)
	case errors.Is(err, core.ErrFrameLength):
		slog.Warn("tcp stream terminated on invalid frame", "remote", s.remote, "error", err)
	default:
		slog.Warn("tcp stream read failed", "remote", s.remote, "error", err)
	}
}

func (s *Stream) end() {
	s.ended = true
	_ = s.Close()
}

// Close implements transport.PayloadStream. It is safe to call more than once
// and from another goroutine.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

// RemoteAddr returns the peer address.
func (s *Stream) RemoteAddr() string { return s.remote }
