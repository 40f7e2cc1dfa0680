package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"firestige.xyz/posebridge/internal/metrics"
)

// Stream is a PayloadStream over one WebSocket connection.
//
// Control frames are handled inside NextPayload: a ping is answered with a
// pong carrying the same application data before the read continues, and a
// pong is ignored.
type Stream struct {
	conn   *websocket.Conn
	remote string

	ended     bool
	closeOnce sync.Once
}

// NewStream wraps conn. A positive readLimit caps message size.
func NewStream(conn *websocket.Conn, readLimit int64) *Stream {
	s := &Stream{conn: conn}
	if addr := conn.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	conn.SetPingHandler(s.onPing)
	conn.SetPongHandler(s.onPong)
	return s
}

func (s *Stream) onPing(appData string) error {
	metrics.TransportFramesSkippedTotal.WithLabelValues(Kind, metrics.ReasonControl).Inc()
	slog.Debug("ws ping received, replying", "remote", s.remote, "bytes", len(appData))

	err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	if err != nil {
		slog.Warn("ws pong write failed", "remote", s.remote, "error", err)
	}
	return err
}

func (s *Stream) onPong(appData string) error {
	metrics.TransportFramesSkippedTotal.WithLabelValues(Kind, metrics.ReasonControl).Inc()
	slog.Debug("ws pong received, ignoring", "remote", s.remote, "bytes", len(appData))
	return nil
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

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logEnd(ctx, err)
			s.end()
			return nil, false
		}

		if mt != websocket.BinaryMessage {
			metrics.TransportFramesSkippedTotal.WithLabelValues(Kind, metrics.ReasonNonBinary).Inc()
			slog.Debug("ws non-binary message skipped", "remote", s.remote, "type", mt, "bytes", len(data))
			continue
		}

		metrics.TransportPayloadsTotal.WithLabelValues(Kind).Inc()
		return data, true
	}
}

func (s *Stream) logEnd(ctx context.Context, err error) {
	var ce *websocket.CloseError
	switch {
	case ctx.Err() != nil:
		slog.Debug("ws stream cancelled", "remote", s.remote)
	case errors.As(err, &ce):
		slog.Info("ws stream closed by peer", "remote", s.remote, "code", ce.Code, "reason", ce.Text)
	case errors.Is(err, net.ErrClosed):
		slog.Debug("ws stream closed locally", "remote", s.remote)
	default:
		slog.Warn("ws stream read failed", "remote", s.remote, "error", err)
	}
}

func (s *Stream) end() {
	s.ended = true
	_ = s.Close()
}

// Close implements transport.PayloadStream. A close frame is sent on a best
// effort basis before the connection is released.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer address.
func (s *Stream) RemoteAddr() string { return s.remote }
