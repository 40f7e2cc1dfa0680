package provider

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/posebridge/internal/codec/codectest"
	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/queue"
)

func result(x float32) core.DetectionResult {
	return core.DetectionResult{Landmarks: []core.Landmark{{X: x}}}
}

func TestQueue_PollNeverBlocks(t *testing.T) {
	tx, rx := queue.New[core.DetectionResult](4)
	p := NewQueue(rx)

	_, ok := p.Poll()
	assert.False(t, ok, "empty queue")

	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, result(1)))
	require.NoError(t, tx.Send(ctx, result(2)))
	assert.Equal(t, 2, p.Pending())

	r, ok := p.Poll()
	require.True(t, ok)
	assert.Equal(t, float32(1), r.Landmarks[0].X)

	r, ok = p.Poll()
	require.True(t, ok)
	assert.Equal(t, float32(2), r.Landmarks[0].X)

	assert.False(t, p.Exhausted())
	tx.Close()
	_, ok = p.Poll()
	assert.False(t, ok)
	assert.True(t, p.Exhausted())
}

func TestQueue_CloseDropsReceiver(t *testing.T) {
	tx, rx := queue.New[core.DetectionResult](1)
	p := NewQueue(rx)
	p.Close()

	assert.ErrorIs(t, tx.Send(context.Background(), result(1)), core.ErrReceiverGone)
}

func TestLatest(t *testing.T) {
	tx, rx := queue.New[core.DetectionResult](8)
	p := NewQueue(rx)

	_, ok := Latest(p)
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		require.NoError(t, tx.Send(context.Background(), result(float32(i))))
	}
	r, ok := Latest(p)
	require.True(t, ok)
	assert.Equal(t, float32(5), r.Landmarks[0].X)
	assert.Equal(t, 0, p.Pending())

	s := NewSynthetic()
	_, ok = Latest(s)
	assert.True(t, ok, "endless providers are bounded")
	assert.Equal(t, maxDrain, s.Frame())
}

func TestSynthetic(t *testing.T) {
	s := NewSynthetic()

	first, ok := s.Poll()
	require.True(t, ok)
	require.Len(t, first.Landmarks, SyntheticLandmarks)
	assert.Equal(t, 1, s.Frame())

	for _, lm := range first.Landmarks {
		assert.Nil(t, lm.Availability)
		assert.Zero(t, lm.Z)
		assert.True(t, lm.X >= 0 && lm.X <= 1, "x in frame: %v", lm.X)
		assert.True(t, lm.Y >= 0 && lm.Y <= 1, "y in frame: %v", lm.Y)
	}

	// Head bob at frame 1.
	assert.InDelta(t, 0.2+0.02*math.Sin(0.05), first.Landmarks[0].Y, 1e-6)
	assert.InDelta(t, 0.5, first.Landmarks[0].X, 1e-6)
	// Static points do not move.
	assert.InDelta(t, 0.45, first.Landmarks[25].X, 1e-6)
	assert.InDelta(t, 0.80, first.Landmarks[25].Y, 1e-6)

	second, ok := s.Poll()
	require.True(t, ok)
	assert.NotEqual(t, first.Landmarks[0].Y, second.Landmarks[0].Y, "figure animates")
	assert.Equal(t, first.Landmarks[25], second.Landmarks[25])

	if diff := cmp.Diff(SyntheticPose(2), second); diff != "" {
		t.Errorf("pose is not deterministic (-want +got):\n%s", diff)
	}
}

// staticProvider returns a fixed sequence of poll outcomes.
type staticProvider struct {
	results []*core.DetectionResult
}

func (p *staticProvider) Poll() (core.DetectionResult, bool) {
	if len(p.results) == 0 {
		return core.DetectionResult{}, false
	}
	r := p.results[0]
	p.results = p.results[1:]
	if r == nil {
		return core.DetectionResult{}, false
	}
	return *r, true
}

func TestTracker_KeepsLastKnown(t *testing.T) {
	sample := codectest.Sample()
	next := result(9)
	p := &staticProvider{results: []*core.DetectionResult{nil, &sample, nil, &next}}
	tr := NewTracker(p)

	_, ok := tr.Latest()
	assert.False(t, ok)

	assert.False(t, tr.Update())
	_, ok = tr.Latest()
	assert.False(t, ok)

	assert.True(t, tr.Update())
	assert.True(t, tr.Fresh())
	got, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, float32(1.0), got.Landmarks[0].X)

	assert.False(t, tr.Update())
	assert.False(t, tr.Fresh())
	got, ok = tr.Latest()
	require.True(t, ok, "last known pose survives an empty poll")
	if diff := cmp.Diff(sample, got); diff != "" {
		t.Errorf("latest mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, tr.Update())
	got, _ = tr.Latest()
	assert.Equal(t, float32(9), got.Landmarks[0].X)
	assert.Same(t, p, tr.Provider())
}
