// Package codec implements the sentinel-delimited frame format used on the
// serial link between the radio device and the host.
//
// Wire layout:
//
//	0x00 | type | COBS(payload) | 0x00
//
// COBS (consistent overhead byte stuffing) removes every zero from the
// payload, so the sentinel can only appear at frame boundaries. Each COBS
// code byte declares the length of the block that follows it; a code that
// points past the end sentinel marks the frame as corrupt.
package codec

import (
	"errors"
	"fmt"

	"firestige.xyz/zbridge/internal/core"
)

const (
	// Sentinel delimits frames. It is both the start and the end marker.
	Sentinel = 0x00

	// Overhead is the fixed framing cost: two sentinels and the type byte.
	Overhead = 3

	maxBlock = 0xFF
)

var (
	// ErrEndNotFound means a frame has started but its end sentinel has not
	// arrived yet. The caller should wait for more bytes.
	ErrEndNotFound = fmt.Errorf("codec: %w", core.ErrEndNotFound)
	// ErrBufferTooSmall is returned by Encode when the output cannot hold the frame.
	ErrBufferTooSmall = fmt.Errorf("codec: %w", core.ErrBufferTooSmall)
	// ErrInvalidMessageType is returned by Encode for the reserved type 0.
	ErrInvalidMessageType = fmt.Errorf("codec: %w", core.ErrInvalidMessageType)
)

// InvalidLengthError reports that the bytes at the front of the input cannot
// start a valid frame. N bytes must be dropped to regain synchronization.
type InvalidLengthError struct {
	N      int
	Reason string
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("codec: invalid length %d: %s", e.N, e.Reason)
}

// Is makes errors.Is(err, core.ErrInvalidLength) match.
func (e *InvalidLengthError) Is(target error) bool {
	return target == core.ErrInvalidLength
}

func invalid(n int, reason string) error {
	return &InvalidLengthError{N: n, Reason: reason}
}

// InvalidLength extracts the discard count from err. ok is false when err is
// not an InvalidLengthError.
func InvalidLength(err error) (n int, ok bool) {
	var ile *InvalidLengthError
	if errors.As(err, &ile) {
		return ile.N, true
	}
	return 0, false
}

// EncodedLen returns the wire size of a frame carrying n payload bytes.
func EncodedLen(n int) int {
	return Overhead + n + n/(maxBlock-1) + 1
}

// MaxPayload returns the largest payload that Encode can fit into an output
// buffer of the given capacity.
func MaxPayload(capacity int) int {
	if capacity < EncodedLen(0) {
		return 0
	}
	n := capacity - Overhead - 1
	for n > 0 && EncodedLen(n) > capacity {
		n--
	}
	return n
}

// Encode writes a frame carrying payload into output and returns the number
// of bytes written.
func Encode(t core.MessageType, payload []byte, output []byte) (int, error) {
	if t == core.MessageNone {
		return 0, ErrInvalidMessageType
	}
	need := EncodedLen(len(payload))
	if need > len(output) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, len(output))
	}

	output[0] = Sentinel
	output[1] = byte(t)
	n := stuff(payload, output[2:])
	output[2+n] = Sentinel
	return 3 + n, nil
}

// stuff COBS-encodes src into dst, which must be large enough.
func stuff(src, dst []byte) int {
	codeIdx := 0
	code := byte(1)
	w := 1
	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = w
			w++
			code = 1
			continue
		}
		dst[w] = b
		w++
		code++
		if code == maxBlock {
			dst[codeIdx] = code
			codeIdx = w
			w++
			code = 1
		}
	}
	dst[codeIdx] = code
	return w
}

// Decode scans input for one complete frame and unstuffs its payload into
// output.
//
// It returns the frame type, the number of input bytes the frame occupied
// (used) and the number of payload bytes written. used == 0 means no frame
// is available yet. A frame with an empty payload is a complete frame with
// used > 0 and written == 0, so callers must stop draining on used == 0,
// not on written == 0. ErrEndNotFound means a frame is incomplete; input is left
// as it is and the caller should wait for more bytes. An *InvalidLengthError
// tells the caller how many leading bytes to drop to resynchronize.
func Decode(input []byte, output []byte) (t core.MessageType, used int, written int, err error) {
	if len(input) == 0 {
		return core.MessageNone, 0, 0, nil
	}

	start := indexSentinel(input, 0)
	switch {
	case start < 0:
		return core.MessageNone, 0, 0, invalid(len(input), "no start sentinel")
	case start > 0:
		return core.MessageNone, 0, 0, invalid(start, "garbage before start sentinel")
	}

	if len(input) < 2 {
		return core.MessageNone, 0, 0, ErrEndNotFound
	}
	if input[1] == Sentinel {
		// A stray sentinel, usually the end of a frame whose start was lost.
		return core.MessageNone, 0, 0, invalid(1, "empty frame")
	}

	end := indexSentinel(input, 2)
	if end < 0 {
		body := len(input) - 2
		if body > EncodedLen(len(output))-Overhead {
			return core.MessageNone, 0, 0, invalid(len(input), "unterminated frame exceeds output capacity")
		}
		return core.MessageNone, 0, 0, ErrEndNotFound
	}

	// On a corrupt body drop everything up to, not including, the end
	// sentinel; it may be the start of the next frame.
	n, reason := unstuff(input[2:end], output)
	if reason != "" {
		return core.MessageNone, 0, 0, invalid(end, reason)
	}
	return core.MessageType(input[1]), end + 1, n, nil
}

// unstuff COBS-decodes src into dst. src contains no zero bytes.
func unstuff(src, dst []byte) (int, string) {
	if len(src) == 0 {
		return 0, "missing payload code"
	}
	r, w := 0, 0
	for r < len(src) {
		code := int(src[r])
		r++
		blockEnd := r + code - 1
		if blockEnd > len(src) {
			return 0, "block length exceeds frame"
		}
		if w+(blockEnd-r) > len(dst) {
			return 0, "payload exceeds output capacity"
		}
		w += copy(dst[w:], src[r:blockEnd])
		r = blockEnd
		if code != maxBlock && r < len(src) {
			if w >= len(dst) {
				return 0, "payload exceeds output capacity"
			}
			dst[w] = 0
			w++
		}
	}
	return w, ""
}

func indexSentinel(b []byte, from int) int {
	for i := from; i < len(b); i++ {
		if b[i] == Sentinel {
			return i
		}
	}
	return -1
}
