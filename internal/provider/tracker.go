package provider

import "firestige.xyz/posebridge/internal/core"

// Tracker remembers the last result seen from a provider, so a renderer
// always has a pose to draw even on ticks without new data.
type Tracker struct {
	p      DetectionProvider
	latest core.DetectionResult
	seen   bool
	fresh  bool
}

// NewTracker tracks p.
func NewTracker(p DetectionProvider) *Tracker {
	return &Tracker{p: p}
}

// Update polls the provider once. It reports whether a new result arrived.
func (t *Tracker) Update() bool {
	r, ok := t.p.Poll()
	t.fresh = ok
	if ok {
		t.latest, t.seen = r, true
	}
	return ok
}

// Latest returns the last known result, false until the first one arrives.
func (t *Tracker) Latest() (core.DetectionResult, bool) {
	return t.latest, t.seen
}

// Fresh reports whether the last Update produced a new result.
func (t *Tracker) Fresh() bool { return t.fresh }

// Provider returns the tracked provider.
func (t *Tracker) Provider() DetectionProvider { return t.p }
