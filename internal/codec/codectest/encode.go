// Package codectest builds detection envelopes for tests. It is the inverse
// of codec.Parse.
package codectest

import (
	flatbuffers "github.com/google/flatbuffers/go"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/protocol/detection"
)

// Encode serializes r as a PoseDetectionResult envelope.
func Encode(r core.DetectionResult) []byte {
	b := flatbuffers.NewBuilder(1024)

	offsets := make([]flatbuffers.UOffsetT, len(r.Landmarks))
	for i, lm := range r.Landmarks {
		var avail flatbuffers.UOffsetT
		if lm.Availability != nil {
			detection.AvailabilityStart(b)
			detection.AvailabilityAddVisibility(b, lm.Availability.Visibility)
			detection.AvailabilityAddPresence(b, lm.Availability.Presence)
			avail = detection.AvailabilityEnd(b)
		}

		detection.LandmarkStart(b)
		detection.LandmarkAddX(b, lm.X)
		detection.LandmarkAddY(b, lm.Y)
		detection.LandmarkAddZ(b, lm.Z)
		if lm.Availability != nil {
			detection.LandmarkAddAvailability(b, avail)
		}
		offsets[i] = detection.LandmarkEnd(b)
	}

	detection.PoseDetectionResultStartLandmarksVector(b, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	vec := b.EndVector(len(offsets))

	detection.PoseDetectionResultStart(b)
	detection.PoseDetectionResultAddLandmarks(b, vec)
	pose := detection.PoseDetectionResultEnd(b)

	return finish(b, detection.DetectionPayloadPoseDetectionResult, pose)
}

// EncodeEmpty builds an envelope tagged Empty.
func EncodeEmpty() []byte {
	b := flatbuffers.NewBuilder(64)
	detection.EmptyStart(b)
	empty := detection.EmptyEnd(b)
	return finish(b, detection.DetectionPayloadEmpty, empty)
}

// EncodeTag builds an envelope with an arbitrary payload tag and an empty
// table as payload. Used to exercise unknown union members.
func EncodeTag(tag byte) []byte {
	b := flatbuffers.NewBuilder(64)
	detection.EmptyStart(b)
	payload := detection.EmptyEnd(b)
	return finish(b, detection.DetectionPayload(tag), payload)
}

// EncodeWithoutLandmarks builds a PoseDetectionResult envelope whose
// landmark vector is absent.
func EncodeWithoutLandmarks() []byte {
	b := flatbuffers.NewBuilder(64)
	detection.PoseDetectionResultStart(b)
	pose := detection.PoseDetectionResultEnd(b)
	return finish(b, detection.DetectionPayloadPoseDetectionResult, pose)
}

func finish(b *flatbuffers.Builder, tag detection.DetectionPayload, payload flatbuffers.UOffsetT) []byte {
	detection.DetectionMessageStart(b)
	detection.DetectionMessageAddPayloadType(b, tag)
	detection.DetectionMessageAddPayload(b, payload)
	msg := detection.DetectionMessageEnd(b)
	detection.FinishDetectionMessageBuffer(b, msg)
	return b.FinishedBytes()
}

// Sample returns the two-landmark result used across the test suites: one
// landmark with availability, one without.
func Sample() core.DetectionResult {
	return core.DetectionResult{Landmarks: []core.Landmark{
		{X: 1.0, Y: 2.0, Z: 3.0, Availability: &core.Availability{Visibility: 0.99, Presence: 0.95}},
		{X: 4.0, Y: 5.0, Z: 6.0},
	}}
}

// Landmarks returns n landmarks; every even index carries availability.
func Landmarks(n int) core.DetectionResult {
	r := core.DetectionResult{Landmarks: make([]core.Landmark, n)}
	for i := range r.Landmarks {
		f := float32(i)
		r.Landmarks[i] = core.Landmark{X: f * 0.01, Y: 1 - f*0.01, Z: -f}
		if i%2 == 0 {
			r.Landmarks[i].Availability = &core.Availability{Visibility: 0.5 + f*0.001, Presence: 0.25}
		}
	}
	return r
}
