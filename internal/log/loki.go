package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// LokiConfig contains configuration for Loki writer.
type LokiConfig struct {
	Endpoint      string            // push endpoint, e.g. http://loki:3100/loki/api/v1/push
	Labels        map[string]string // stream labels; job defaults to posebridge
	BatchSize     int               // lines per push, default 100
	FlushInterval time.Duration     // default 5s
}

// LokiWriter is an io.Writer that ships each written line to Grafana Loki
// in batches. Writes never block on the network.
type LokiWriter struct {
	endpoint   string
	labels     map[string]string
	batchSize  int
	interval   time.Duration
	httpClient *http.Client

	mu     sync.Mutex
	batch  [][2]string // unix nanos, line
	closed bool

	kick    chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	dropped atomic.Uint64
	onError func(error)
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// NewLokiWriter creates a Loki writer and starts its background flusher.
func NewLokiWriter(cfg LokiConfig) (*LokiWriter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("loki endpoint is required")
	}
	if cfg.FlushInterval < 0 {
		return nil, fmt.Errorf("invalid flush interval: %s", cfg.FlushInterval)
	}

	labels := make(map[string]string, len(cfg.Labels)+1)
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	if _, ok := labels["job"]; !ok {
		labels["job"] = "posebridge"
	}

	lw := &LokiWriter{
		endpoint:   cfg.Endpoint,
		labels:     labels,
		batchSize:  cfg.BatchSize,
		interval:   cfg.FlushInterval,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		kick:       make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "loki output: %v\n", err)
		},
	}
	if lw.batchSize <= 0 {
		lw.batchSize = 100
	}
	if lw.interval == 0 {
		lw.interval = 5 * time.Second
	}

	lw.wg.Add(1)
	go lw.flusher()
	return lw, nil
}

// Write implements io.Writer. p is copied.
func (lw *LokiWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, "\n"))
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)

	lw.mu.Lock()
	if lw.closed {
		lw.mu.Unlock()
		return 0, fmt.Errorf("loki writer is closed")
	}
	lw.batch = append(lw.batch, [2]string{ts, line})
	full := len(lw.batch) >= lw.batchSize
	lw.mu.Unlock()

	if full {
		select {
		case lw.kick <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Dropped returns the number of lines that could not be delivered.
func (lw *LokiWriter) Dropped() uint64 { return lw.dropped.Load() }

// Close stops the flusher and pushes what is left.
func (lw *LokiWriter) Close() error {
	lw.mu.Lock()
	if lw.closed {
		lw.mu.Unlock()
		return nil
	}
	lw.closed = true
	lw.mu.Unlock()

	close(lw.closeCh)
	lw.wg.Wait()
	return lw.flush()
}

func (lw *LokiWriter) flusher() {
	defer lw.wg.Done()

	ticker := time.NewTicker(lw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-lw.kick:
		case <-lw.closeCh:
			return
		}
		if err := lw.flush(); err != nil {
			lw.onError(err)
		}
	}
}

// flush takes the pending batch and pushes it outside the lock.
func (lw *LokiWriter) flush() error {
	lw.mu.Lock()
	values := lw.batch
	lw.batch = nil
	lw.mu.Unlock()

	if len(values) == 0 {
		return nil
	}

	data, err := json.Marshal(lokiPushRequest{
		Streams: []lokiStream{{Stream: lw.labels, Values: values}},
	})
	if err != nil {
		lw.dropped.Add(uint64(len(values)))
		return fmt.Errorf("failed to marshal loki request: %w", err)
	}

	if err := lw.sendWithRetry(data); err != nil {
		lw.dropped.Add(uint64(len(values)))
		return err
	}
	return nil
}

// sendWithRetry pushes with exponential backoff.
func (lw *LokiWriter) sendWithRetry(data []byte) error {
	const maxAttempts = 3
	delay := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		if lastErr = lw.send(data); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("loki push failed after %d attempts: %w", maxAttempts, lastErr)
}

func (lw *LokiWriter) send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lw.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lw.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("loki push failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}
