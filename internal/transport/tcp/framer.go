// Package tcp implements the stream-socket transport: every message is a
// 4-byte length header followed by that many payload bytes.
package tcp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
)

// HeaderLen is the size of the length prefix.
const HeaderLen = 4

// DefaultMaxFrameLen is the largest payload accepted by default.
const DefaultMaxFrameLen = 65536

// LengthPolicy decides what happens to a frame whose header declares a
// length of zero or above the configured maximum.
type LengthPolicy int

const (
	// PolicySkip discards the declared body and yields an empty payload, so
	// the reader stays aligned on the next header.
	PolicySkip LengthPolicy = iota
	// PolicyTerminate ends the stream.
	PolicyTerminate
)

func (p LengthPolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicyTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("LengthPolicy(%d)", int(p))
	}
}

// ParseLengthPolicy parses "skip" or "terminate".
func ParseLengthPolicy(s string) (LengthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "terminate":
		return PolicyTerminate, nil
	default:
		return PolicySkip, fmt.Errorf("%w: unknown length policy %q (must be skip/terminate)", core.ErrConfigInvalid, s)
	}
}

// ParseByteOrder parses "little" or "big".
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le", "little_endian":
		return binary.LittleEndian, nil
	case "big", "be", "big_endian":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: unknown byte order %q (must be little/big)", core.ErrConfigInvalid, s)
	}
}

// FrameConfig describes the wire convention shared by reader and writer.
type FrameConfig struct {
	Order  binary.ByteOrder
	MaxLen uint32
	Policy LengthPolicy
}

// DefaultFrameConfig is little-endian, 64 KiB, skip.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Order:  binary.LittleEndian,
		MaxLen: DefaultMaxFrameLen,
		Policy: PolicySkip,
	}
}

// Framer reads frames from a byte stream.
type Framer struct {
	r   *bufio.Reader
	cfg FrameConfig
	hdr [HeaderLen]byte
}

// NewFramer wraps r. Zero fields of cfg take their defaults.
func NewFramer(r io.Reader, cfg FrameConfig) *Framer {
	def := DefaultFrameConfig()
	if cfg.Order == nil {
		cfg.Order = def.Order
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = def.MaxLen
	}
	return &Framer{
		r:   bufio.NewReaderSize(r, 16*1024),
		cfg: cfg,
	}
}

// ReadPayload returns the next frame's payload.
//
// io.EOF means the stream ended cleanly on a frame boundary and
// io.ErrUnexpectedEOF that it ended inside a frame. A degenerate length
// yields an empty non-nil payload under PolicySkip, and an error wrapping
// core.ErrFrameLength under PolicyTerminate.
func (f *Framer) ReadPayload() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.hdr[:]); err != nil {
		return nil, err
	}
	length := f.cfg.Order.Uint32(f.hdr[:])

	if length == 0 || length > f.cfg.MaxLen {
		metrics.TransportFramesSkippedTotal.WithLabelValues(Kind, metrics.ReasonLength).Inc()
		if f.cfg.Policy == PolicyTerminate {
			slog.Warn("unexpected frame length, terminating stream", "length", length, "max", f.cfg.MaxLen)
			return nil, fmt.Errorf("%w: %d bytes (max %d)", core.ErrFrameLength, length, f.cfg.MaxLen)
		}

		slog.Warn("unexpected frame length, skipping frame", "length", length, "max", f.cfg.MaxLen)
		if length > 0 {
			if _, err := io.CopyN(io.Discard, f.r, int64(length)); err != nil {
				return nil, unexpected(err)
			}
		}
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, unexpected(err)
	}
	return payload, nil
}

// unexpected maps a clean EOF inside a frame to io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// AppendFrame appends the framed form of payload to dst.
func AppendFrame(dst []byte, order binary.ByteOrder, payload []byte) []byte {
	var hdr [HeaderLen]byte
	order.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// WriteFrame writes payload with its length header in a single Write.
func WriteFrame(w io.Writer, order binary.ByteOrder, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes does not fit the header", core.ErrFrameLength, len(payload))
	}
	_, err := w.Write(AppendFrame(make([]byte, 0, HeaderLen+len(payload)), order, payload))
	return err
}
