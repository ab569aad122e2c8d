package codec

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/zbridge/internal/core"
)

func TestEncodeKnownFrames(t *testing.T) {
	tests := []struct {
		name    string
		typ     core.MessageType
		payload []byte
		want    []byte
	}{
		{
			name:    "empty payload",
			typ:     core.Log,
			payload: nil,
			want:    []byte{0x00, 0x05, 0x01, 0x00},
		},
		{
			name:    "no zeros",
			typ:     core.RadioReceive,
			payload: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x37},
			want:    []byte{0x00, 0x01, 0x06, 0xDE, 0xAD, 0xBE, 0xEF, 0x37, 0x00},
		},
		{
			name:    "embedded zero",
			typ:     core.EnergyDetect,
			payload: []byte{0x0B, 0x00},
			want:    []byte{0x00, 0x02, 0x02, 0x0B, 0x01, 0x00},
		},
		{
			name:    "only zeros",
			typ:     core.RadioSend,
			payload: []byte{0x00, 0x00},
			want:    []byte{0x00, 0x03, 0x01, 0x01, 0x01, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, 64)
			n, err := Encode(tt.typ, tt.payload, out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[:n])
			assert.Equal(t, EncodedLen(len(tt.payload)), n)
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	out := make([]byte, 8)

	_, err := Encode(core.MessageNone, []byte{1}, out)
	assert.ErrorIs(t, err, core.ErrInvalidMessageType)

	_, err = Encode(core.RadioReceive, make([]byte, 5), out)
	assert.ErrorIs(t, err, core.ErrBufferTooSmall)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	n, err := Encode(core.RadioReceive, make([]byte, 4), out)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{0, 1, 2, 3, 127, 253, 254, 255, 256, 508, 509, 600}

	for _, size := range sizes {
		for _, zeroRate := range []int{0, 2, 10} {
			payload := make([]byte, size)
			for i := range payload {
				if zeroRate > 0 && rng.Intn(zeroRate) == 0 {
					continue
				}
				payload[i] = byte(rng.Intn(255) + 1)
			}

			wire := make([]byte, EncodedLen(size))
			n, err := Encode(core.MessageType(0x7A), payload, wire)
			require.NoError(t, err)
			require.LessOrEqual(t, n, len(wire))
			assert.Equal(t, -1, bytes.IndexByte(wire[1:n-1], Sentinel), "sentinel inside frame body")

			out := make([]byte, size)
			typ, used, written, err := Decode(wire[:n], out)
			require.NoError(t, err, "size=%d", size)
			assert.Equal(t, core.MessageType(0x7A), typ)
			assert.Equal(t, n, used)
			assert.Equal(t, size, written)
			assert.Equal(t, payload, out[:written])
		}
	}
}

func TestDecodeRadioReceive(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x37}
	wire := make([]byte, 32)
	n, err := Encode(core.RadioReceive, payload, wire)
	require.NoError(t, err)

	out := make([]byte, 256)
	typ, used, written, err := Decode(wire[:n], out)
	require.NoError(t, err)
	assert.Equal(t, core.RadioReceive, typ)
	assert.Equal(t, n, used)
	assert.Equal(t, payload, out[:written])
}

func TestDecodeEmptyPayloadIsAFrame(t *testing.T) {
	out := make([]byte, 16)
	typ, used, written, err := Decode([]byte{0x00, 0x05, 0x01, 0x00, 0x00}, out)
	require.NoError(t, err)
	assert.Equal(t, core.Log, typ)
	assert.Equal(t, 4, used, "the frame is consumed even though nothing was written")
	assert.Zero(t, written)
}

func TestDecodeStates(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		outCap  int
		wantErr error
		discard int
		used    int
	}{
		{name: "empty input", input: nil, outCap: 16},
		{name: "lone sentinel", input: []byte{0x00}, outCap: 16, wantErr: core.ErrEndNotFound},
		{name: "open frame", input: []byte{0x00, 0x01, 0x04, 0xAA}, outCap: 16, wantErr: core.ErrEndNotFound},
		{name: "all garbage", input: []byte{0x11, 0x22, 0x33}, outCap: 16, wantErr: core.ErrInvalidLength, discard: 3},
		{name: "garbage before start", input: []byte{0x11, 0x22, 0x00, 0x01, 0x01, 0x00}, outCap: 16, wantErr: core.ErrInvalidLength, discard: 2},
		{name: "back to back sentinels", input: []byte{0x00, 0x00, 0x01, 0x01, 0x00}, outCap: 16, wantErr: core.ErrInvalidLength, discard: 1},
		{name: "missing code byte", input: []byte{0x00, 0x01, 0x00}, outCap: 16, wantErr: core.ErrInvalidLength, discard: 2},
		{name: "declared block past end", input: []byte{0x00, 0x01, 0x05, 0xDE, 0xAD, 0x00}, outCap: 16, wantErr: core.ErrInvalidLength, discard: 5},
		{name: "payload exceeds output", input: []byte{0x00, 0x01, 0x04, 0x01, 0x02, 0x03, 0x00}, outCap: 2, wantErr: core.ErrInvalidLength, discard: 6},
		{name: "unterminated oversize", input: []byte{0x00, 0x01, 0x09, 0x01, 0x02, 0x03, 0x04}, outCap: 2, wantErr: core.ErrInvalidLength, discard: 7},
		{name: "complete frame", input: []byte{0x00, 0x01, 0x02, 0xAA, 0x00, 0x00}, outCap: 16, used: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]byte(nil), tt.input...)
			_, used, _, err := Decode(tt.input, make([]byte, tt.outCap))
			assert.Equal(t, before, tt.input, "decode must not modify input")

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.used, used)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if errors.Is(tt.wantErr, core.ErrInvalidLength) {
				n, ok := InvalidLength(err)
				require.True(t, ok)
				assert.Equal(t, tt.discard, n)
			}
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	out := make([]byte, 32)
	for i := 0; i < 5000; i++ {
		input := make([]byte, rng.Intn(80))
		for j := range input {
			// Bias towards sentinels and small code bytes.
			switch rng.Intn(4) {
			case 0:
				input[j] = 0
			case 1:
				input[j] = byte(rng.Intn(8))
			default:
				input[j] = byte(rng.Intn(256))
			}
		}
		_, used, written, err := Decode(input, out)
		if err != nil {
			if n, ok := InvalidLength(err); ok {
				assert.GreaterOrEqual(t, n, 1)
				assert.LessOrEqual(t, n, len(input))
			} else {
				assert.ErrorIs(t, err, core.ErrEndNotFound)
			}
			continue
		}
		assert.LessOrEqual(t, used, len(input))
		assert.LessOrEqual(t, written, len(out))
	}
}

func TestMaxPayload(t *testing.T) {
	for _, capacity := range []int{0, 3, 4, 5, 64, 256, 262, 1024} {
		n := MaxPayload(capacity)
		if capacity < EncodedLen(0) {
			assert.Zero(t, n)
			continue
		}
		assert.LessOrEqual(t, EncodedLen(n), capacity)
		assert.Greater(t, EncodedLen(n+1), capacity)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{0x00, 0x01, 0x02, 0xAA, 0x00})
	f.Add([]byte{0x00, 0x01, 0x05, 0xDE, 0xAD, 0x00})
	f.Add([]byte{0xFF, 0x00, 0x00})
	f.Fuzz(func(t *testing.T, input []byte) {
		out := make([]byte, 64)
		_, used, written, err := Decode(input, out)
		if err == nil && (used > len(input) || written > len(out)) {
			t.Fatalf("used=%d written=%d out of range", used, written)
		}
		if n, ok := InvalidLength(err); ok && (n < 1 || n > len(input)) {
			t.Fatalf("discard %d out of range for %d bytes", n, len(input))
		}
	})
}

func BenchmarkDecode(b *testing.B) {
	payload := bytes.Repeat([]byte{0x41, 0x00, 0x42}, 40)
	wire := make([]byte, EncodedLen(len(payload)))
	n, _ := Encode(core.RadioReceive, payload, wire)
	out := make([]byte, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := Decode(wire[:n], out); err != nil {
			b.Fatal(err)
		}
	}
}
