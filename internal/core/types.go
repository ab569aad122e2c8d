// Package core defines core types with zero external dependencies.
package core

import "fmt"

// MessageType tags a frame on the host/device serial link. The set is open:
// values without a named constant are passed through unspecialized.
type MessageType uint8

const (
	// MessageNone is reserved; it equals the frame sentinel and is never encoded.
	MessageNone MessageType = 0
	// RadioReceive carries a captured packet followed by one LQI byte.
	RadioReceive MessageType = 1
	// EnergyDetect carries exactly two bytes: channel, energy level.
	EnergyDetect MessageType = 2
	// RadioSend asks the device to transmit the payload.
	RadioSend MessageType = 3
	// SetChannel asks the device to tune to the channel in the first payload byte.
	SetChannel MessageType = 4
	// Log carries free-form device diagnostics.
	Log MessageType = 5
)

var messageTypeNames = map[MessageType]string{
	MessageNone:  "None",
	RadioReceive: "RadioReceive",
	EnergyDetect: "EnergyDetect",
	RadioSend:    "RadioSend",
	SetChannel:   "SetChannel",
	Log:          "Log",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Known reports whether t has specialized handling.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok && t != MessageNone
}
