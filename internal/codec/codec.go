// Package codec decodes detection envelopes into core.DetectionResult values.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	flatbuffers "github.com/google/flatbuffers/go"

	"firestige.xyz/posebridge/internal/core"
	"firestige.xyz/posebridge/internal/protocol/detection"
)

var (
	// ErrEmptyPayload is returned for envelopes tagged Empty (or carrying no tag at all).
	ErrEmptyPayload = errors.New("codec: empty payload")
	// ErrUnknownPayload is returned for tags this decoder does not handle.
	ErrUnknownPayload = errors.New("codec: unknown payload type")
	// ErrMalformed is returned when the buffer is not a valid envelope.
	ErrMalformed = errors.New("codec: malformed envelope")
)

// minEnvelopeLen is root offset + vtable header + table soffset.
const minEnvelopeLen = 12

// Parse decodes buf and reports whether it carried a pose detection result.
// Every failure (malformed buffer, unknown tag, Empty) reduces to false; the
// reason is logged together with the buffer length.
func Parse(buf []byte) (core.DetectionResult, bool) {
	result, err := Decode(buf)
	switch {
	case err == nil:
		return result, true
	case errors.Is(err, ErrEmptyPayload):
		slog.Debug("empty payload received, skipping frame", "bytes", len(buf))
	default:
		slog.Warn("failed to decode envelope, skipping frame", "bytes", len(buf), "error", err)
	}
	return core.DetectionResult{}, false
}

// Decode is Parse with the failure reason preserved.
func Decode(buf []byte) (result core.DetectionResult, err error) {
	// The generated accessors index into buf without bounds checks of their own.
	defer func() {
		if r := recover(); r != nil {
			result = core.DetectionResult{}
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if err := checkRoot(buf); err != nil {
		return core.DetectionResult{}, err
	}

	msg := detection.GetRootAsDetectionMessage(buf, 0)
	switch tag := msg.PayloadType(); tag {
	case detection.DetectionPayloadPoseDetectionResult:
		var tab flatbuffers.Table
		if !msg.Payload(&tab) {
			return core.DetectionResult{}, fmt.Errorf("%w: %s tag without payload", ErrMalformed, tag)
		}
		var pose detection.PoseDetectionResult
		pose.Init(tab.Bytes, tab.Pos)
		return decodePose(&pose, len(buf))

	case detection.DetectionPayloadNONE, detection.DetectionPayloadEmpty:
		return core.DetectionResult{}, ErrEmptyPayload

	default:
		return core.DetectionResult{}, fmt.Errorf("%w: %s", ErrUnknownPayload, tag)
	}
}

func decodePose(pose *detection.PoseDetectionResult, bufLen int) (core.DetectionResult, error) {
	n := pose.LandmarksLength()
	// each element is at least a 4-byte offset
	if n < 0 || n > bufLen/4 {
		return core.DetectionResult{}, fmt.Errorf("%w: landmark count %d exceeds buffer", ErrMalformed, n)
	}

	landmarks := make([]core.Landmark, 0, n)
	var (
		fl detection.Landmark
		fa detection.Availability
	)
	for i := 0; i < n; i++ {
		pose.Landmarks(&fl, i)
		lm := core.Landmark{
			X: fl.X(),
			Y: fl.Y(),
			Z: fl.Z(),
		}
		if a := fl.Availability(&fa); a != nil {
			lm.Availability = &core.Availability{
				Visibility: a.Visibility(),
				Presence:   a.Presence(),
			}
		}
		landmarks = append(landmarks, lm)
	}
	return core.DetectionResult{Landmarks: landmarks}, nil
}

// checkRoot validates that the root table and its vtable lie inside buf.
func checkRoot(buf []byte) error {
	if len(buf) < minEnvelopeLen {
		return fmt.Errorf("%w: %d bytes is shorter than an envelope", ErrMalformed, len(buf))
	}
	size := int64(len(buf))

	root := int64(binary.LittleEndian.Uint32(buf))
	if root+4 > size {
		return fmt.Errorf("%w: root offset %d out of range", ErrMalformed, root)
	}

	vtable := root - int64(int32(binary.LittleEndian.Uint32(buf[root:])))
	if vtable < 0 || vtable+4 > size {
		return fmt.Errorf("%w: vtable offset %d out of range", ErrMalformed, vtable)
	}

	vtableLen := int64(binary.LittleEndian.Uint16(buf[vtable:]))
	objectLen := int64(binary.LittleEndian.Uint16(buf[vtable+2:]))
	if vtableLen < 4 || vtable+vtableLen > size || root+objectLen > size {
		return fmt.Errorf("%w: root table exceeds buffer", ErrMalformed)
	}
	return nil
}
