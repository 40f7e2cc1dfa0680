// Package ws implements the message-socket transport: every binary
// WebSocket message is one payload.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
	"firestige.xyz/posebridge/internal/transport"
)

// Kind is the registry name of this transport.
const Kind = "ws"

const (
	// DefaultReadLimit caps the size of a single message.
	DefaultReadLimit = 65536

	controlWriteWait = 5 * time.Second
)

func init() {
	transport.MustRegister(Kind, NewFactory)
}

// Options configures the WebSocket transport.
type Options struct {
	URL              string        `mapstructure:"url" yaml:"url"`         // dial mode
	Address          string        `mapstructure:"address" yaml:"address"` // listen mode
	Path             string        `mapstructure:"path" yaml:"path"`       // listen mode
	Subprotocols     []string      `mapstructure:"subprotocols" yaml:"subprotocols"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	ReadLimit        int64         `mapstructure:"read_limit" yaml:"read_limit"`
	MaxConns         int           `mapstructure:"max_conns" yaml:"max_conns"`
}

// DefaultOptions returns the defaults used for absent option keys.
func DefaultOptions() Options {
	return Options{
		URL:              "ws://127.0.0.1:9000",
		Address:          "127.0.0.1:9000",
		Path:             "/",
		HandshakeTimeout: 5 * time.Second,
		ReadLimit:        DefaultReadLimit,
		MaxConns:         1,
	}
}

// Dialer connects to, or accepts connections from, a WebSocket producer.
type Dialer struct {
	opts Options
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
	if opts.ReadLimit < 0 {
		return nil, fmt.Errorf("%w: read_limit must not be negative", core.ErrConfigInvalid)
	}
	if opts.MaxConns < 0 {
		return nil, fmt.Errorf("%w: max_conns must not be negative", core.ErrConfigInvalid)
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Dialer{opts: opts}, nil
}

// Kind implements transport.Dialer.
func (d *Dialer) Kind() string { return Kind }

// Options returns the effective options.
func (d *Dialer) Options() Options { return d.opts }

// Dial implements transport.Dialer.
func (d *Dialer) Dial(ctx context.Context) (transport.PayloadStream, error) {
	u, err := url.Parse(d.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: ws url %q: %w", core.ErrConnect, d.opts.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: ws url %q: scheme must be ws or wss", core.ErrConnect, d.opts.URL)
	}

	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: transport.DurationOrDefault(d.opts.HandshakeTimeout, 5*time.Second),
		Subprotocols:     d.opts.Subprotocols,
	}
	conn, resp, err := wd.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", core.ErrConnect, u.Redacted(), err)
	}

	metrics.TransportConnectionsTotal.WithLabelValues(Kind, "outbound").Inc()
	slog.Info("ws transport connected", "url", u.Redacted(), "subprotocol", conn.Subprotocol())
	return NewStream(conn, d.opts.ReadLimit), nil
}

// Listen implements transport.Listener. Producers upgrade on Options.Path.
func (d *Dialer) Listen(ctx context.Context, accept func(transport.PayloadStream, net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", d.opts.Address)
	if err != nil {
		return fmt.Errorf("%w: listen ws %s: %w", core.ErrConnect, d.opts.Address, err)
	}
	return d.Serve(ctx, ln, accept)
}

// Serve runs the upgrade endpoint on ln until ctx ends.
func (d *Dialer) Serve(ctx context.Context, ln net.Listener, accept func(transport.PayloadStream, net.Addr)) error {
	if d.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, d.opts.MaxConns)
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: transport.DurationOrDefault(d.opts.HandshakeTimeout, 5*time.Second),
		Subprotocols:     d.opts.Subprotocols,
		CheckOrigin:      func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(d.opts.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied with an HTTP error.
			slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		metrics.TransportConnectionsTotal.WithLabelValues(Kind, "inbound").Inc()
		slog.Info("ws transport accepted connection", "remote", r.RemoteAddr)
		accept(NewStream(conn, d.opts.ReadLimit), conn.RemoteAddr())
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	slog.Info("ws transport listening", "addr", ln.Addr().String(), "path", d.opts.Path)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws serve: %w", err)
	}
	return nil
}
