// Package radio defines the receive side of an IEEE 802.15.4 radio driver
// as the device pipelines see it.
package radio

import (
	"errors"
	"fmt"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/queue"
)

// MaxPacketLength is the size of buffer a receive needs: one length byte
// and up to 127 bytes of packet plus link quality.
const MaxPacketLength = queue.MaxPacketLength

var (
	ErrNoPacket       = fmt.Errorf("radio: %w", core.ErrNoPacket)
	ErrCRC            = errors.New("radio: frame check sequence mismatch")
	ErrBufferTooSmall = errors.New("radio: receive buffer too small")
	ErrPacketTooLong  = errors.New("radio: packet too long")
)

// Radio receives packets. A receive copies the pending packet into buf as
// a queue record, [L][packet...][LQI] with L = len(packet)+1, and returns the
// record length 1+L. The frame check sequence has already been verified and
// is not part of the packet.
type Radio interface {
	// ReceiveSlice receives into a caller-provided region, such as a
	// queue grant.
	ReceiveSlice(buf []byte) (int, error)
	// Receive receives into a scratch buffer; the listener uses it to
	// drain a packet it has to drop.
	Receive(buf *[MaxPacketLength]byte) (int, error)
	// Events delivers one value per received packet, standing in for the
	// radio interrupt.
	Events() <-chan struct{}
}

// PutRecord writes p into buf as a queue record and returns its length.
func PutRecord(buf []byte, p core.RadioPacket) (int, error) {
	l := len(p.Data) + 1
	if l > MaxPacketLength-1 {
		return 0, fmt.Errorf("%w: %d bytes", ErrPacketTooLong, len(p.Data))
	}
	if len(buf) < 1+l {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, 1+l, len(buf))
	}
	buf[0] = byte(l)
	copy(buf[1:], p.Data)
	buf[l] = p.LQI
	return 1 + l, nil
}
