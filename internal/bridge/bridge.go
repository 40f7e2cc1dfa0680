// Package bridge composes a detection provider from configuration: it picks
// the provider kind and, for queue providers, the transport, and wires the
// transport through a forwarder into the provider's queue.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"firestige.xyz/posebridge/internal/codec"
	"firestige.xyz/posebridge/internal/config"
	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/forwarder"
	"firestige.xyz/posebridge/internal/provider"
	"firestige.xyz/posebridge/internal/queue"
	"firestige.xyz/posebridge/internal/transport"

	// Registered transports.
	_ "firestige.xyz/posebridge/internal/transport/kafka"
	_ "firestige.xyz/posebridge/internal/transport/tcp"
	_ "firestige.xyz/posebridge/internal/transport/ws"
)

// Open builds a provider as configured. For a queue provider the transport
// is dialed first; connection errors are returned and wrap core.ErrConnect.
// Cancelling ctx stops the session's forwarder.
func Open(ctx context.Context, cfg config.BridgeConfig) (*Session, error) {
	switch cfg.Provider.Kind {
	case provider.KindSynthetic:
		s := &Session{
			ID:       uuid.NewString(),
			Kind:     provider.KindSynthetic,
			Provider: provider.NewSynthetic(),
		}
		slog.Info("session opened", "session", s.ID, "provider", s.Kind)
		return s, nil

	case provider.KindQueue:
		if cfg.Transport.Mode == config.ModeListen {
			return nil, fmt.Errorf("%w: transport mode %q accepts many producers, use Serve", core.ErrConfigInvalid, cfg.Transport.Mode)
		}
		d, err := transport.New(cfg.Transport.Kind, cfg.Transport.Options)
		if err != nil {
			return nil, err
		}
		stream, err := d.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return start(ctx, d.Kind(), stream, cfg.Forwarder.QueueCapacity)

	default:
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownProvider, cfg.Provider.Kind)
	}
}

// Serve accepts producer connections until ctx ends. Every connection gets
// its own queue, forwarder and provider, handed to onSession in a new
// goroutine. Serve returns after all onSession calls have returned.
func Serve(ctx context.Context, cfg config.BridgeConfig, onSession func(*Session)) error {
	if cfg.Provider.Kind != provider.KindQueue {
		return fmt.Errorf("%w: listen mode requires the queue provider, got '%s'", core.ErrConfigInvalid, cfg.Provider.Kind)
	}
	d, err := transport.New(cfg.Transport.Kind, cfg.Transport.Options)
	if err != nil {
		return err
	}
	l, ok := d.(transport.Listener)
	if !ok {
		return fmt.Errorf("%w: transport '%s' cannot listen", core.ErrConfigInvalid, d.Kind())
	}

	var wg conc.WaitGroup
	defer wg.Wait()

	return l.Listen(ctx, func(stream transport.PayloadStream, remote net.Addr) {
		s, err := start(ctx, d.Kind(), stream, cfg.Forwarder.QueueCapacity)
		if err != nil {
			slog.Error("failed to start session", "remote", remote.String(), "error", err)
			_ = stream.Close()
			return
		}
		s.Remote = remote.String()
		wg.Go(func() { onSession(s) })
	})
}

func start(ctx context.Context, kind string, stream transport.PayloadStream, capacity int) (*Session, error) {
	id := uuid.NewString()
	tx, rx := queue.New[core.DetectionResult](capacity)

	fwd, err := forwarder.Spawn(ctx, forwarder.Config[core.DetectionResult]{
		ID:     id,
		Kind:   kind,
		Stream: stream,
		Queue:  tx,
		Decode: codec.Parse,
	})
	if err != nil {
		return nil, err
	}

	q := provider.NewQueue(rx)
	slog.Info("session opened", "session", id, "provider", provider.KindQueue, "transport", kind, "queue_capacity", tx.Cap())
	return &Session{
		ID:        id,
		Kind:      kind,
		Provider:  q,
		queue:     q,
		forwarder: fwd,
	}, nil
}
