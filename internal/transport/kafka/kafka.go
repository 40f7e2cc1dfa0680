// Package kafka implements the message-log transport: every record value on
// a Kafka topic is one payload.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
	"firestige.xyz/posebridge/internal/transport"
)

// Kind is the registry name of this transport.
const Kind = "kafka"

func init() {
	transport.MustRegister(Kind, NewFactory)
}

// Options configures the Kafka transport.
type Options struct {
	Brokers     []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic       string        `mapstructure:"topic" yaml:"topic"`
	GroupID     string        `mapstructure:"group_id" yaml:"group_id"`
	StartOffset string        `mapstructure:"start_offset" yaml:"start_offset"` // earliest | latest
	MaxBytes    int           `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxWait     time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// DefaultOptions returns the defaults used for absent option keys.
func DefaultOptions() Options {
	return Options{
		Brokers:     []string{"127.0.0.1:9092"},
		Topic:       "pose-detections",
		GroupID:     "posebridge",
		StartOffset: "latest",
		MaxBytes:    10 << 20,
		MaxWait:     time.Second,
		DialTimeout: 5 * time.Second,
	}
}

// reader is the subset of *kafka.Reader used by Stream.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dialer creates group-consuming readers.
type Dialer struct {
	opts        Options
	startOffset int64

	// newReader is replaced in tests.
	newReader func(kafka.ReaderConfig) reader
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
	if len(opts.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers is required", core.ErrConfigInvalid)
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", core.ErrConfigInvalid)
	}

	var startOffset int64
	switch strings.ToLower(opts.StartOffset) {
	case "earliest":
		startOffset = kafka.FirstOffset
	case "", "latest":
		startOffset = kafka.LastOffset
	default:
		return nil, fmt.Errorf("%w: unknown start_offset %q (must be earliest/latest)", core.ErrConfigInvalid, opts.StartOffset)
	}

	return &Dialer{
		opts:        opts,
		startOffset: startOffset,
		newReader:   func(cfg kafka.ReaderConfig) reader { return kafka.NewReader(cfg) },
	}, nil
}

// Kind implements transport.Dialer.
func (d *Dialer) Kind() string { return Kind }

// Options returns the effective options.
func (d *Dialer) Options() Options { return d.opts }

// ReaderConfig returns the kafka-go configuration built from the options.
func (d *Dialer) ReaderConfig() kafka.ReaderConfig {
	maxBytes := d.opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return kafka.ReaderConfig{
		Brokers:        d.opts.Brokers,
		Topic:          d.opts.Topic,
		GroupID:        d.opts.GroupID,
		StartOffset:    d.startOffset,
		MinBytes:       1,
		MaxBytes:       maxBytes,
		MaxWait:        transport.DurationOrDefault(d.opts.MaxWait, time.Second),
		CommitInterval: time.Second,
		Dialer: &kafka.Dialer{
			Timeout: transport.DurationOrDefault(d.opts.DialTimeout, 5*time.Second),
		},
	}
}

// Dial implements transport.Dialer. The broker connection is established
// lazily by the reader, so the first failure surfaces as end-of-stream.
func (d *Dialer) Dial(ctx context.Context) (transport.PayloadStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: kafka %s: %w", core.ErrConnect, d.opts.Topic, err)
	}
	cfg := d.ReaderConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: kafka reader: %w", core.ErrConnect, err)
	}

	metrics.TransportConnectionsTotal.WithLabelValues(Kind, "outbound").Inc()
	slog.Info("kafka transport subscribed",
		"brokers", d.opts.Brokers,
		"topic", d.opts.Topic,
		"group_id", d.opts.GroupID,
		"start_offset", d.opts.StartOffset,
	)
	return newStream(d.newReader(cfg), d.opts.Topic, d.opts.GroupID != ""), nil
}

// Stream is a PayloadStream over a Kafka reader.
type Stream struct {
	r      reader
	topic  string
	commit bool

	ended     bool
	closeOnce sync.Once
}

func newStream(r reader, topic string, commit bool) *Stream {
	return &Stream{r: r, topic: topic, commit: commit}
}

// NextPayload implements transport.PayloadStream. With a consumer group the
// record is committed once it has been handed out.
func (s *Stream) NextPayload(ctx context.Context) ([]byte, bool) {
	if s.ended {
		return nil, false
	}

	msg, err := s.r.FetchMessage(ctx)
	if err != nil {
		switch {
		case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			slog.Debug("kafka stream cancelled", "topic", s.topic)
		case errors.Is(err, io.EOF):
			slog.Debug("kafka stream closed locally", "topic", s.topic)
		default:
			slog.Warn("kafka fetch failed, ending stream", "topic", s.topic, "error", err)
		}
		s.end()
		return nil, false
	}

	if s.commit {
		if err := s.r.CommitMessages(ctx, msg); err != nil {
			slog.Warn("kafka commit failed", "topic", s.topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}

	metrics.TransportPayloadsTotal.WithLabelValues(Kind).Inc()
	if msg.Value == nil {
		return []byte{}, true
	}
	return msg.Value, true
}

func (s *Stream) end() {
	s.ended = true
	_ = s.Close()
}

// Close implements transport.PayloadStream.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.r.Close() })
	return err
}
