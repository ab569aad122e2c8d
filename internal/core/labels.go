// Package core defines core types.
package core

// Structured log field names following the {component}.{field} convention.
const (
	FieldMessageType = "frame.type"
	FieldFrameLen    = "frame.len"
	FieldDiscarded   = "frame.discarded"

	FieldPacketLen = "packet.len"
	FieldLQI       = "packet.lqi"

	FieldMACType     = "mac.type"
	FieldMACSequence = "mac.seq"
	FieldMACSrc      = "mac.src"
	FieldMACDst      = "mac.dst"

	FieldPort     = "serial.port"
	FieldQueueLen = "queue.occupancy"
)
