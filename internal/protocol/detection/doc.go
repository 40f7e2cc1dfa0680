// Package detection holds the FlatBuffers accessors for the detection
// envelope schema in detection.fbs.
package detection

//go:generate flatc --go --go-namespace detection -o . detection.fbs
