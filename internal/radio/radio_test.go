package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/zbridge/internal/core"
)

func TestPutRecord(t *testing.T) {
	buf := make([]byte, MaxPacketLength)
	n, err := PutRecord(buf, core.RadioPacket{Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}, LQI: 0x37})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{0x05, 0xDE, 0xAD, 0xBE, 0xEF, 0x37}, buf[:n])

	_, err = PutRecord(buf[:3], core.RadioPacket{Data: []byte{1, 2}})
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	_, err = PutRecord(buf, core.RadioPacket{Data: make([]byte, 127)})
	assert.ErrorIs(t, err, ErrPacketTooLong)

	n, err = PutRecord(buf, core.RadioPacket{Data: make([]byte, 125), LQI: 1})
	require.NoError(t, err)
	assert.Equal(t, MaxPacketLength, n)
}
