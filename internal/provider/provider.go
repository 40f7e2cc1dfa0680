// Package provider exposes detection results to a polling consumer.
package provider

import (
	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/metrics"
)

// Provider kinds.
const (
	KindQueue     = "queue"
	KindSynthetic = "synthetic"
)

// DetectionProvider yields detection results to a consumer that polls on
// its own cadence, typically once per frame. Poll never blocks.
type DetectionProvider interface {
	Poll() (core.DetectionResult, bool)
}

// maxDrain bounds Latest on providers that never run dry.
const maxDrain = 1024

// Latest polls p until it runs dry and returns the newest result. It is
// meant for consumers that tick slower than the producer.
func Latest(p DetectionProvider) (core.DetectionResult, bool) {
	var (
		latest core.DetectionResult
		found  bool
	)
	for i := 0; i < maxDrain; i++ {
		r, ok := p.Poll()
		if !ok {
			break
		}
		latest, found = r, true
	}
	return latest, found
}

func observePoll(kind string, ok bool) {
	result := "empty"
	if ok {
		result = "result"
	}
	metrics.ProviderPollsTotal.WithLabelValues(kind, result).Inc()
}
