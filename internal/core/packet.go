// Package core defines core data structures with zero external dependencies.
package core

import "time"

// Message is a decoded serial-link frame. Payload aliases the decoder's
// scratch buffer and is only valid until the next decode; use Clone to keep it.
type Message struct {
	Type    MessageType
	Payload []byte
}

// Clone returns a copy of m that owns its payload.
func (m Message) Clone() Message {
	p := make([]byte, len(m.Payload))
	copy(p, m.Payload)
	return Message{Type: m.Type, Payload: p}
}

// RadioPacket is a captured IEEE 802.15.4 PSDU without its FCS, plus the
// link quality indicator the radio reported for it.
type RadioPacket struct {
	Data      []byte
	LQI       uint8
	Timestamp time.Time
}

// RadioPacketFromMessage splits a RadioReceive payload into packet bytes and
// the trailing LQI byte. It returns false for an empty payload.
func RadioPacketFromMessage(m Message, ts time.Time) (RadioPacket, bool) {
	if m.Type != RadioReceive || len(m.Payload) == 0 {
		return RadioPacket{}, false
	}
	n := len(m.Payload) - 1
	return RadioPacket{
		Data:      m.Payload[:n],
		LQI:       m.Payload[n],
		Timestamp: ts,
	}, true
}

// EnergyReading is the payload of an EnergyDetect message.
type EnergyReading struct {
	Channel uint8
	Level   uint8
}

// EnergyReadingFromMessage decodes an EnergyDetect payload, which must be
// exactly two bytes.
func EnergyReadingFromMessage(m Message) (EnergyReading, bool) {
	if m.Type != EnergyDetect || len(m.Payload) != 2 {
		return EnergyReading{}, false
	}
	return EnergyReading{Channel: m.Payload[0], Level: m.Payload[1]}, true
}
