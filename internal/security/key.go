// Package security holds ZigBee key material: parsing of textual keys, a
// named key ring, and the keyed hash used to derive transport and load keys.
package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the length of an AES-128 key in bytes.
const KeySize = 16

var ErrInvalidKey = errors.New("security: invalid key")

// Key is a 128-bit link or network key.
type Key [KeySize]byte

// DefaultLinkKey is the well-known trust center link key "ZigBeeAlliance09".
var DefaultLinkKey = Key{
	0x5a, 0x69, 0x67, 0x42, 0x65, 0x65, 0x41, 0x6c,
	0x6c, 0x69, 0x61, 0x6e, 0x63, 0x65, 0x30, 0x39,
}

// ParseKey parses a key written as 16 hex bytes, either colon separated
// ("5a:69:67:...") or as one 32-digit string. Surrounding space is ignored.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimSpace(s)
	digits := s
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != KeySize {
			return k, fmt.Errorf("%w: %d bytes in %q", ErrInvalidKey, len(parts), s)
		}
		for _, p := range parts {
			if len(p) != 2 {
				return k, fmt.Errorf("%w: bad byte %q", ErrInvalidKey, p)
			}
		}
		digits = strings.Join(parts, "")
	}
	if len(digits) != 2*KeySize {
		return k, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	if _, err := hex.Decode(k[:], []byte(digits)); err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// String renders the key colon separated, the form ParseKey accepts.
func (k Key) String() string {
	var sb strings.Builder
	for i, b := range k {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}
