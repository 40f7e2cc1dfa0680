package bridge

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/posebridge/internal/codec/codectest"
	"firestige.xyz/posebridge/internal/config"
	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/provider"
	"firestige.xyz/posebridge/internal/transport/tcp"
)

func tcpConfig(addr, mode string) config.BridgeConfig {
	return config.BridgeConfig{
		Provider: config.ProviderConfig{Kind: provider.KindQueue},
		Transport: config.TransportConfig{
			Kind:    tcp.Kind,
			Mode:    mode,
			Options: map[string]any{"address": addr},
		},
		Forwarder: config.ForwarderConfig{QueueCapacity: 4},
	}
}

func pollUntil(t *testing.T, p provider.DetectionProvider) core.DetectionResult {
	t.Helper()
	var got core.DetectionResult
	require.Eventually(t, func() bool {
		r, ok := p.Poll()
		if ok {
			got = r
		}
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestOpen_Synthetic(t *testing.T) {
	s, err := Open(context.Background(), config.BridgeConfig{
		Provider: config.ProviderConfig{Kind: provider.KindSynthetic},
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, provider.KindSynthetic, s.Kind)
	assert.Nil(t, s.Done())
	assert.False(t, s.Exhausted())
	assert.Zero(t, s.Stats())

	r, ok := s.Provider.Poll()
	require.True(t, ok)
	assert.Len(t, r.Landmarks, provider.SyntheticLandmarks)
}

func TestOpen_TCPEndToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	producer := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			producer <- c
		}
	}()

	s, err := Open(context.Background(), tcpConfig(ln.Addr().String(), config.ModeDial))
	require.NoError(t, err)
	defer s.Close()

	var conn net.Conn
	select {
	case conn = <-producer:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not connect")
	}

	// Garbage first: the forwarder must survive it.
	require.NoError(t, tcp.WriteFrame(conn, binary.LittleEndian, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}))
	require.NoError(t, tcp.WriteFrame(conn, binary.LittleEndian, codectest.Encode(codectest.Sample())))

	got := pollUntil(t, s.Provider)
	if diff := cmp.Diff(codectest.Sample(), got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(1), s.Stats().DecodeFailures)

	// Producer hangs up: the session drains and reports exhaustion.
	require.NoError(t, conn.Close())
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.True(t, s.Exhausted())
}

func TestOpen_CloseStopsForwarder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(5 * time.Second)
		}
	}()

	s, err := Open(context.Background(), tcpConfig(ln.Addr().String(), config.ModeDial))
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop a forwarder blocked on read")
	}
}

func TestOpen_Errors(t *testing.T) {
	refused, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	refusedAddr := refused.Addr().String()
	require.NoError(t, refused.Close())

	tests := []struct {
		name   string
		cfg    config.BridgeConfig
		target error
	}{
		{
			name:   "unknown provider",
			cfg:    config.BridgeConfig{Provider: config.ProviderConfig{Kind: "camera"}},
			target: core.ErrUnknownProvider,
		},
		{
			name: "unknown transport",
			cfg: config.BridgeConfig{
				Provider:  config.ProviderConfig{Kind: provider.KindQueue},
				Transport: config.TransportConfig{Kind: "carrier-pigeon"},
			},
			target: core.ErrUnknownTransport,
		},
		{
			name:   "connection refused",
			cfg:    tcpConfig(refusedAddr, config.ModeDial),
			target: core.ErrConnect,
		},
		{
			name:   "listen mode",
			cfg:    tcpConfig("127.0.0.1:0", config.ModeListen),
			target: core.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestServe_SessionPerConnection(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	cfg := tcpConfig(addr, config.ModeListen)
	cfg.Transport.Options["max_conns"] = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu      sync.Mutex
		results []core.DetectionResult
		ids     = map[string]bool{}
	)
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, cfg, func(s *Session) {
			r, ok := s.Provider.Poll()
			for !ok {
				select {
				case <-s.Done():
					return
				case <-time.After(5 * time.Millisecond):
				}
				r, ok = s.Provider.Poll()
			}
			mu.Lock()
			results = append(results, r)
			ids[s.ID] = true
			mu.Unlock()
			<-s.Done()
		})
	}()

	var conns []net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conns = append(conns, c)
		return true
	}, 2*time.Second, 10*time.Millisecond)
	c2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	conns = append(conns, c2)

	for i, c := range conns {
		defer c.Close()
		require.NoError(t, tcp.WriteFrame(c, binary.LittleEndian, codectest.Encode(codectest.Landmarks(i+1))))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Len(t, ids, 2, "one session per connection")
	sizes := []int{results[0].Len(), results[1].Len()}
	mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2}, sizes)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_Errors(t *testing.T) {
	err := Serve(context.Background(), config.BridgeConfig{
		Provider: config.ProviderConfig{Kind: provider.KindSynthetic},
	}, func(*Session) {})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	err = Serve(context.Background(), config.BridgeConfig{
		Provider: config.ProviderConfig{Kind: provider.KindQueue},
		Transport: config.TransportConfig{
			Kind:    "kafka",
			Options: map[string]any{"brokers": "127.0.0.1:9092", "topic": "poses"},
		},
	}, func(*Session) {})
	assert.ErrorIs(t, err, core.ErrConfigInvalid, "kafka has no listen mode")
}
