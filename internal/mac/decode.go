package mac

import (
	"encoding/binary"
	"fmt"
)

const (
	// Frame control (2), sequence (1), FCS (2).
	minFrameLength = 5

	fcSecurity      = 1 << 3
	fcFramePending  = 1 << 4
	fcAckRequest    = 1 << 5
	fcPANIDCompress = 1 << 6
)

// Decode parses one MAC frame. raw must end with the 2-byte frame check
// sequence, which is returned in Frame.FCS but not verified; see ValidFCS.
// Decode is pure: the same input always yields the same result, and the
// returned Payload aliases raw.
//
// Checks run in a fixed order so that each malformed frame is reported with
// exactly one error: length, frame type, security, frame version, address
// modes, addressing rules for the frame type, address field lengths, then
// the type-specific payload.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < minFrameLength {
		return Frame{}, short("frame", minFrameLength, len(raw))
	}
	fc := binary.LittleEndian.Uint16(raw)

	frameType := FrameType(fc & 0x07)
	if frameType > FrameMacCommand {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidFrameType, uint8(frameType))
	}
	if fc&fcSecurity != 0 {
		return Frame{}, ErrSecurityNotSupported
	}
	version := FrameVersion(fc >> 12 & 0x03)
	if version > Version2006 {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidFrameVersion, uint8(version))
	}
	dstMode := AddressMode(fc >> 10 & 0x03)
	srcMode := AddressMode(fc >> 14 & 0x03)
	if dstMode == addressReserved || srcMode == addressReserved {
		return Frame{}, ErrInvalidAddressMode
	}

	h := Header{
		Type:          frameType,
		FramePending:  fc&fcFramePending != 0,
		AckRequest:    fc&fcAckRequest != 0,
		PANIDCompress: fc&fcPANIDCompress != 0,
		Version:       version,
		Sequence:      raw[2],
	}
	if err := checkAddressing(h, dstMode, srcMode); err != nil {
		return Frame{}, err
	}

	end := len(raw) - FCSLength
	body := raw[:end]
	off := 3
	var err error
	if h.Destination, off, err = readAddress(body, off, dstMode, false, 0); err != nil {
		return Frame{}, err
	}
	if h.Source, off, err = readAddress(body, off, srcMode, h.PANIDCompress, h.Destination.PAN); err != nil {
		return Frame{}, err
	}

	f := Frame{
		Header:  h,
		Payload: body[off:],
		FCS:     binary.LittleEndian.Uint16(raw[end:]),
	}
	switch frameType {
	case FrameAcknowledgement:
		if len(f.Payload) > 0 {
			return Frame{}, invalid("acknowledgement with %d payload bytes", len(f.Payload))
		}
	case FrameBeacon:
		b, err := decodeBeacon(f.Payload)
		if err != nil {
			return Frame{}, err
		}
		f.Body = b
	case FrameMacCommand:
		if len(f.Payload) > 0 {
			c, err := decodeCommand(f.Payload)
			if err != nil {
				return Frame{}, err
			}
			f.Body = c
		}
	case FrameData:
		// Handed to the network layer as is.
	}
	return f, nil
}

// DecodeCapture decodes a packet as delivered by the radio: the link quality
// byte already removed and no frame check sequence, because the radio
// verifies and strips it. A computed FCS is appended before decoding, so the
// result carries the checksum the sender must have transmitted and
// ValidFCS holds for it. packet is not modified.
func DecodeCapture(packet []byte) (Frame, error) {
	raw := make([]byte, len(packet), len(packet)+FCSLength)
	copy(raw, packet)
	return Decode(AppendFCS(raw))
}

func checkAddressing(h Header, dst, src AddressMode) error {
	switch h.Type {
	case FrameAcknowledgement:
		if dst != AddressNone {
			return &AddressModeNotSupportedError{Mode: dst}
		}
		if src != AddressNone {
			return &AddressModeNotSupportedError{Mode: src}
		}
		return nil
	case FrameBeacon:
		if dst != AddressNone {
			return &AddressModeNotSupportedError{Mode: dst}
		}
		if src == AddressNone {
			return invalid("beacon without source address")
		}
	default:
		if dst == AddressNone && src == AddressNone {
			return invalid("%s frame without addresses", h.Type)
		}
	}
	if h.PANIDCompress && (dst == AddressNone || src == AddressNone) {
		return invalid("PAN id compression needs both addresses")
	}
	return nil
}

func readAddress(b []byte, off int, mode AddressMode, compressed bool, pan uint16) (Address, int, error) {
	if mode == AddressNone {
		return Address{}, off, nil
	}
	a := Address{Mode: mode, PAN: pan}
	if !compressed {
		if len(b) < off+2 {
			return Address{}, off, short("PAN id", off+2, len(b))
		}
		a.PAN = binary.LittleEndian.Uint16(b[off:])
		off += 2
	}
	switch mode {
	case AddressShort:
		if len(b) < off+2 {
			return Address{}, off, short("short address", off+2, len(b))
		}
		a.Short = binary.LittleEndian.Uint16(b[off:])
		off += 2
	case AddressExtended:
		if len(b) < off+8 {
			return Address{}, off, short("extended address", off+8, len(b))
		}
		a.Extended = binary.LittleEndian.Uint64(b[off:])
		off += 8
	}
	return a, off, nil
}
