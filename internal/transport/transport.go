// Package transport defines the framed payload capability shared by all
// byte-stream transports, and the registry that selects one by kind.
package transport

import (
	"context"
	"net"
)

// PayloadStream yields length-delimited payloads from one connection.
//
// NextPayload blocks until a complete payload is available and returns it
// with true. A clean close, an unrecoverable transport error and the end of
// ctx are all reported the same way: nil and false. Errors are logged by the
// implementation, never returned. Once false has been returned every later
// call returns false as well.
//
// Payloads are delivered in arrival order. A PayloadStream is owned by a
// single goroutine; only Close may be called from another one.
type PayloadStream interface {
	NextPayload(ctx context.Context) ([]byte, bool)
	// Close releases the connection. A blocked NextPayload settles into
	// end-of-stream.
	Close() error
}

// Dialer establishes outbound PayloadStreams.
// Dial errors are connection-establishment failures and wrap core.ErrConnect.
type Dialer interface {
	Kind() string
	Dial(ctx context.Context) (PayloadStream, error)
}

// Listener is implemented by Dialers that can also accept inbound
// connections. accept is called once per connection from the accept loop and
// must not block.
type Listener interface {
	Listen(ctx context.Context, accept func(PayloadStream, net.Addr)) error
}

// Factory builds a Dialer from untyped options, typically the
// transport.options section of the configuration.
type Factory func(options map[string]any) (Dialer, error)
