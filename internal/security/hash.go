package security

import (
	"errors"
	"fmt"
)

const (
	innerPad = 0x36
	outerPad = 0x5c

	// The length trailer of the MMO padding is 16 bits of bit count.
	maxHashInput = 1<<13 - 1
)

var ErrHashInputTooLong = errors.New("security: hash input too long")

// Inputs to HashKey that derive the ZigBee key-transport and key-load keys.
const (
	KeyTransportInput byte = 0x00
	KeyLoadInput      byte = 0x02
)

// HashKey computes the FIPS 198 keyed hash of one input byte under key,
// with the ZigBee Matyas-Meyer-Oseas hash as the underlying function.
func HashKey(c BlockCipher, key Key, input byte) (Key, error) {
	var inner [BlockSize + 1]byte
	var outer [2 * BlockSize]byte
	for i := range key {
		inner[i] = key[i] ^ innerPad
		outer[i] = key[i] ^ outerPad
	}
	inner[BlockSize] = input

	h, err := mmoHash(c, inner[:])
	if err != nil {
		return Key{}, fmt.Errorf("inner hash: %w", err)
	}
	copy(outer[BlockSize:], h[:])
	if h, err = mmoHash(c, outer[:]); err != nil {
		return Key{}, fmt.Errorf("outer hash: %w", err)
	}
	return Key(h), nil
}

// mmoHash is the Matyas-Meyer-Oseas hash: each block is encrypted under the
// running hash as key and xored with itself to form the next hash.
func mmoHash(c BlockCipher, input []byte) ([BlockSize]byte, error) {
	var h [BlockSize]byte
	if len(input) > maxHashInput {
		return h, fmt.Errorf("%w: %d bytes", ErrHashInputTooLong, len(input))
	}

	full := len(input) / BlockSize * BlockSize
	for off := 0; off < full; off += BlockSize {
		if err := mmoBlock(c, &h, input[off:off+BlockSize]); err != nil {
			return h, err
		}
	}

	// Padding: a single 1 bit, zeros, then the message length in bits as a
	// big endian 16-bit value closing the last block.
	rem := input[full:]
	tail := make([]byte, BlockSize, 2*BlockSize)
	if len(rem)+3 > BlockSize {
		tail = tail[:2*BlockSize]
	}
	copy(tail, rem)
	tail[len(rem)] = 0x80
	bits := uint16(len(input) * 8)
	tail[len(tail)-2] = byte(bits >> 8)
	tail[len(tail)-1] = byte(bits)
	for off := 0; off < len(tail); off += BlockSize {
		if err := mmoBlock(c, &h, tail[off:off+BlockSize]); err != nil {
			return h, err
		}
	}
	return h, nil
}

func mmoBlock(c BlockCipher, h *[BlockSize]byte, block []byte) error {
	if err := c.SetKey(h[:]); err != nil {
		return err
	}
	if err := c.Process(block, h[:]); err != nil {
		return err
	}
	for i := range h {
		h[i] ^= block[i]
	}
	return nil
}
