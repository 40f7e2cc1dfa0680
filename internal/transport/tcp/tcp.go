package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/net/netutil"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
	"firestige.xyz/posebridge/internal/transport"
)

// Kind is the registry name of this transport.
const Kind = "tcp"

func init() {
	transport.MustRegister(Kind, NewFactory)
}

// Options configures the TCP transport.
type Options struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	ByteOrder    string        `mapstructure:"byte_order" yaml:"byte_order"`       // little | big
	MaxFrameLen  uint32        `mapstructure:"max_frame_len" yaml:"max_frame_len"` // payload ceiling in bytes
	LengthPolicy string        `mapstructure:"length_policy" yaml:"length_policy"` // skip | terminate
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	MaxConns     int           `mapstructure:"max_conns" yaml:"max_conns"` // listen mode only, 0 = unlimited
}

// DefaultOptions returns the defaults used for absent option keys.
func DefaultOptions() Options {
	return Options{
		Address:      "127.0.0.1:9000",
		ByteOrder:    "little",
		MaxFrameLen:  DefaultMaxFrameLen,
		LengthPolicy: "skip",
		DialTimeout:  5 * time.Second,
		MaxConns:     1,
	}
}

// FrameConfig validates the wire-related options.
func (o Options) FrameConfig() (FrameConfig, error) {
	order, err := ParseByteOrder(o.ByteOrder)
	if err != nil {
		return FrameConfig{}, err
	}
	policy, err := ParseLengthPolicy(o.LengthPolicy)
	if err != nil {
		return FrameConfig{}, err
	}
	if o.MaxFrameLen == 0 {
		return FrameConfig{}, fmt.Errorf("%w: max_frame_len must be positive", core.ErrConfigInvalid)
	}
	return FrameConfig{Order: order, MaxLen: o.MaxFrameLen, Policy: policy}, nil
}

// Dialer connects to, or accepts connections from, a length-prefixed producer.
type Dialer struct {
	opts  Options
	frame FrameConfig
}

// NewFactory is the transport.Factory for Kind.
func NewFactory(options map[string]any) (transport.Dialer, error) {
	opts := DefaultOptions()
	if err := transport.DecodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewDialer(opts)
}

// NewDialer validates opts.
func NewDialer(opts Options) (*Dialer, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("%w: tcp address is required", core.ErrConfigInvalid)
	}
	if opts.MaxConns < 0 {
		return nil, fmt.Errorf("%w: max_conns must not be negative", core.ErrConfigInvalid)
	}
	frame, err := opts.FrameConfig()
	if err != nil {
		return nil, err
	}
	return &Dialer{opts: opts, frame: frame}, nil
}

// Kind implements transport.Dialer.
func (d *Dialer) Kind() string { return Kind }

// Options returns the effective options.
func (d *Dialer) Options() Options { return d.opts }

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context) (transport.PayloadStream, error) {
	if _, _, err := net.SplitHostPort(d.opts.Address); err != nil {
		return nil, fmt.Errorf("%w: tcp address %q: %w", core.ErrConnect, d.opts.Address, err)
	}

	nd := net.Dialer{Timeout: transport.DurationOrDefault(d.opts.DialTimeout, 5*time.Second)}
	conn, err := nd.DialContext(ctx, "tcp", d.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial tcp %s: %w", core.ErrConnect, d.opts.Address, err)
	}

	metrics.TransportConnectionsTotal.WithLabelValues(Kind, "outbound").Inc()
	slog.Info("tcp transport connected", "addr", d.opts.Address, "order", d.frame.Order, "policy", d.frame.Policy)
	return NewStream(conn, d.frame), nil
}

// Listen implements transport.Listener. It serves until ctx ends, with at
// most MaxConns connections open at once; further peers wait in the backlog
// until a Stream is closed.
func (d *Dialer) Listen(ctx context.Context, accept func(transport.PayloadStream, net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", d.opts.Address)
	if err != nil {
		return fmt.Errorf("%w: listen tcp %s: %w", core.ErrConnect, d.opts.Address, err)
	}
	return d.Serve(ctx, ln, accept)
}

// Serve accepts connections from ln until ctx ends. ln is closed on return.
func (d *Dialer) Serve(ctx context.Context, ln net.Listener, accept func(transport.PayloadStream, net.Addr)) error {
	if d.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, d.opts.MaxConns)
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	slog.Info("tcp transport listening", "addr", ln.Addr().String(), "max_conns", d.opts.MaxConns)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				slog.Warn("tcp accept timed out, retrying", "error", err)
				continue
			}
			return fmt.Errorf("tcp accept: %w", err)
		}

		metrics.TransportConnectionsTotal.WithLabelValues(Kind, "inbound").Inc()
		slog.Info("tcp transport accepted connection", "remote", conn.RemoteAddr().String())
		accept(NewStream(conn, d.frame), conn.RemoteAddr())
	}
}
