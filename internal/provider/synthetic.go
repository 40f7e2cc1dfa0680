package provider

import (
	"math"

	"firestige.xyz/posebridge/internal/core"
)

// SyntheticLandmarks is the number of landmarks in a synthetic pose.
const SyntheticLandmarks = 33

// restPose is the standing figure in normalized image coordinates, indexed
// like the 33-point body landmark model.
var restPose = [SyntheticLandmarks][2]float64{
	{0.50, 0.20}, // nose
	{0.48, 0.18}, {0.46, 0.18}, {0.44, 0.18}, // left eye
	{0.52, 0.18}, {0.54, 0.18}, {0.56, 0.18}, // right eye
	{0.44, 0.22}, {0.56, 0.22}, // ears
	{0.46, 0.25}, {0.54, 0.25}, // mouth
	{0.40, 0.35}, {0.60, 0.35}, // shoulders
	{0.35, 0.50}, {0.65, 0.50}, // elbows
	{0.30, 0.65}, {0.70, 0.65}, // wrists
	{0.29, 0.68}, {0.71, 0.68}, // pinkies
	{0.31, 0.68}, {0.69, 0.68}, // index fingers
	{0.32, 0.67}, {0.68, 0.67}, // thumbs
	{0.45, 0.60}, {0.55, 0.60}, // hips
	{0.45, 0.80}, {0.55, 0.80}, // knees
	{0.45, 0.95}, {0.55, 0.95}, // ankles
	{0.44, 0.97}, {0.56, 0.97}, // heels
	{0.43, 0.98}, {0.57, 0.98}, // foot index
}

// Synthetic is a DetectionProvider that animates a figure without any
// transport: the head bobs and the arms and hips sway. Every Poll advances
// one frame and returns a result. Landmarks carry no availability.
type Synthetic struct {
	frame int
}

// NewSynthetic returns a provider positioned before the first frame.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Frame returns the number of frames produced so far.
func (s *Synthetic) Frame() int { return s.frame }

// Poll implements DetectionProvider.
func (s *Synthetic) Poll() (core.DetectionResult, bool) {
	s.frame++
	observePoll(KindSynthetic, true)
	return SyntheticPose(s.frame), true
}

// SyntheticPose returns the figure at frame.
func SyntheticPose(frame int) core.DetectionResult {
	t := float64(frame) * 0.05

	lms := make([]core.Landmark, SyntheticLandmarks)
	for i, p := range restPose {
		x, y := p[0], p[1]
		switch i {
		case 0:
			y += 0.02 * math.Sin(t)
		case 11, 12:
			x += 0.01 * math.Cos(t*0.8)
		case 13, 14:
			x += 0.02 * math.Sin(t*0.6)
		case 15, 16:
			x += 0.03 * math.Sin(t*0.6)
		case 23, 24:
			x += 0.005 * math.Sin(t*0.5)
		}
		lms[i] = core.Landmark{X: float32(x), Y: float32(y)}
	}
	return core.DetectionResult{Landmarks: lms}
}
