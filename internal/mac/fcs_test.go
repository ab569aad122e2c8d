package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint16(0x2189), Checksum([]byte("123456789")))
	assert.Equal(t, uint16(0), Checksum(nil))
}

func TestAppendAndValidFCS(t *testing.T) {
	frame := AppendFCS([]byte("123456789"))
	assert.Equal(t, []byte{0x89, 0x21}, frame[9:])
	assert.True(t, ValidFCS(frame))

	frame[0] ^= 0x01
	assert.False(t, ValidFCS(frame))
	assert.False(t, ValidFCS([]byte{0x01}))
}
