package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSharesNoMemory(t *testing.T) {
	orig := DetectionResult{Landmarks: []Landmark{
		{X: 1, Y: 2, Z: 3, Availability: &Availability{Visibility: 0.9, Presence: 0.8}},
		{X: 4, Y: 5, Z: 6},
	}}

	cp := orig.Clone()
	assert.Equal(t, orig, cp)

	cp.Landmarks[0].X = 42
	cp.Landmarks[0].Availability.Presence = 0
	assert.Equal(t, float32(1), orig.Landmarks[0].X)
	assert.Equal(t, float32(0.8), orig.Landmarks[0].Availability.Presence)
	assert.Nil(t, cp.Landmarks[1].Availability)
}

func TestCloneEmpty(t *testing.T) {
	var r DetectionResult
	assert.Equal(t, 0, r.Clone().Len())
}

func TestSentinelErrorsWrap(t *testing.T) {
	sentinels := []error{ErrConnect, ErrUnknownTransport, ErrUnknownProvider, ErrFrameLength, ErrReceiverGone, ErrConfigInvalid}
	for _, s := range sentinels {
		wrapped := fmt.Errorf("context: %w", s)
		assert.True(t, errors.Is(wrapped, s), "errors.Is failed for %v", s)
	}
}
