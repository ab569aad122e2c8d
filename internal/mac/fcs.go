package mac

import "encoding/binary"

// FCSLength is the size of the trailing frame check sequence.
const FCSLength = 2

// CRC-16/KERMIT: polynomial 0x1021 reflected, zero init, no final xor.
var crcTable = func() (t [256]uint16) {
	for i := range t {
		crc := uint16(i)
		for b := 0; b < 8; b++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// Checksum computes the IEEE 802.15.4 frame check sequence over data.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crc>>8 ^ crcTable[byte(crc)^b]
	}
	return crc
}

// AppendFCS appends the checksum of frame to frame, low byte first.
func AppendFCS(frame []byte) []byte {
	return binary.LittleEndian.AppendUint16(frame, Checksum(frame))
}

// ValidFCS reports whether the last two bytes of raw are its checksum.
func ValidFCS(raw []byte) bool {
	if len(raw) < FCSLength {
		return false
	}
	n := len(raw) - FCSLength
	return binary.LittleEndian.Uint16(raw[n:]) == Checksum(raw[:n])
}
