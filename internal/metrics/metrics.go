// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransportPayloadsTotal counts payloads yielded by transports
	TransportPayloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posebridge_transport_payloads_total",
			Help: "Total number of payloads yielded by transports",
		},
		[]string{"transport"},
	)

	// TransportFramesSkippedTotal counts frames dropped at the framing layer
	TransportFramesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posebridge_transport_frames_skipped_total",
			Help: "Total number of frames or messages skipped by transports",
		},
		[]string{"transport", "reason"},
	)

	// TransportConnectionsTotal counts established connections
	TransportConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posebridge_transport_connections_total",
			Help: "Total number of transport connections established",
		},
		[]string{"transport", "direction"},
	)

	// ForwarderResultsTotal counts forwarder outcomes per payload
	ForwarderResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posebridge_forwarder_results_total",
			Help: "Total number of payloads handled by forwarders, by outcome",
		},
		[]string{"transport", "outcome"},
	)

	// ForwarderEnqueueWaitSeconds measures time spent blocked on a full queue
	ForwarderEnqueueWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posebridge_forwarder_enqueue_wait_seconds",
			Help:    "Time a forwarder spent waiting to enqueue a decoded result",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		},
		[]string{"transport"},
	)

	// ForwardersActive tracks running forwarders
	ForwardersActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posebridge_forwarders_active",
			Help: "Number of running forwarders",
		},
		[]string{"transport"},
	)

	// ProviderPollsTotal counts provider polls by result
	ProviderPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posebridge_provider_polls_total",
			Help: "Total number of provider polls",
		},
		[]string{"provider", "result"},
	)
)

// Forwarder outcome label values
const (
	OutcomeEnqueued     = "enqueued"
	OutcomeDecodeFailed = "decode_failed"
	OutcomeEmptyFrame   = "empty_frame"
)

// Skip reason label values
const (
	ReasonLength    = "invalid_length"
	ReasonControl   = "control"
	ReasonNonBinary = "non_binary"
)
