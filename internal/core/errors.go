// Package core defines sentinel errors.
package core

import "errors"

var (
	// Connection establishment errors
	ErrConnect          = errors.New("posebridge: connect failed")
	ErrUnknownTransport = errors.New("posebridge: unknown transport")
	ErrUnknownProvider  = errors.New("posebridge: unknown provider")

	// Framing errors
	ErrFrameLength = errors.New("posebridge: invalid frame length")

	// Queue errors
	ErrReceiverGone = errors.New("posebridge: queue receiver gone")

	// Configuration errors
	ErrConfigInvalid = errors.New("posebridge: invalid configuration")
)
