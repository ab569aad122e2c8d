// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared across the bridge. Packages wrap these with
// fmt.Errorf("...: %w") or typed errors that unwrap to them.
var (
	// Serial frame codec errors
	ErrEndNotFound        = errors.New("zbridge: frame end not found")
	ErrInvalidLength      = errors.New("zbridge: invalid frame length")
	ErrBufferTooSmall     = errors.New("zbridge: output buffer too small")
	ErrInvalidMessageType = errors.New("zbridge: invalid message type")

	// Reassembly errors
	ErrBufferExhausted = errors.New("zbridge: reassembly buffer exhausted")

	// Packet queue errors
	ErrQueueFull  = errors.New("zbridge: packet queue full")
	ErrQueueEmpty = errors.New("zbridge: packet queue empty")

	// Transport errors
	ErrTimeout = errors.New("zbridge: read timeout")

	// Radio errors
	ErrNoPacket = errors.New("zbridge: no packet received")

	// Configuration errors
	ErrConfigInvalid = errors.New("zbridge: invalid configuration")
)
