// Package core defines core types with zero external dependencies.
package core

// Availability is per-landmark confidence metadata.
// Both fields are normally in [0,1] but are never range-checked here.
type Availability struct {
	Visibility float32 // confidence the landmark is in frame
	Presence   float32 // confidence the landmark is actually tracked
}

// Landmark is one pose keypoint. X and Y are normalized image coordinates,
// Z is a unit-less relative depth estimate.
//
// Availability is nil when the producer supplied no confidence metadata;
// a nil value is never replaced with a zero default.
type Landmark struct {
	X            float32
	Y            float32
	Z            float32
	Availability *Availability
}

// DetectionResult is one decoded pose.
//
// Landmark order is the anatomical index defined by the producer (index 0 is
// the nose) and is never reordered. A DetectionResult is not mutated after it
// has been decoded; newer results replace older ones at the queue boundary.
type DetectionResult struct {
	Landmarks []Landmark
}

// Len returns the number of landmarks.
func (r DetectionResult) Len() int { return len(r.Landmarks) }

// Clone returns a deep copy that shares no memory with r.
func (r DetectionResult) Clone() DetectionResult {
	if r.Landmarks == nil {
		return DetectionResult{}
	}
	out := make([]Landmark, len(r.Landmarks))
	for i, lm := range r.Landmarks {
		out[i] = lm
		if lm.Availability != nil {
			a := *lm.Availability
			out[i].Availability = &a
		}
	}
	return DetectionResult{Landmarks: out}
}
