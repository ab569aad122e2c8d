package queue

import (
	"errors"
	"fmt"
)

// MaxPacketLength is the largest record the radio capture step produces:
// one length byte plus up to 127 bytes (the 802.15.4 PSDU limit).
const MaxPacketLength = 128

var (
	ErrRecordTooLong = errors.New("queue: record too long")
	ErrCorruptRecord = errors.New("queue: corrupt record")
)

// PushRecord appends one record: a length byte L followed by the packet and
// its trailing link quality byte, where L = len(packet)+1.
func (p *Producer) PushRecord(packet []byte, lqi byte) error {
	l := len(packet) + 1
	if l > MaxPacketLength-1 {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLong, l)
	}
	g, err := p.Grant(l + 1)
	if err != nil {
		return err
	}
	buf := g.Buf()
	buf[0] = byte(l)
	copy(buf[1:], packet)
	buf[l] = lqi
	g.Commit(l + 1)
	return nil
}

// PopRecord hands the next record's L bytes (packet then LQI) to fn and
// releases the record. fn must not retain the slice. It returns ErrEmpty when
// no record is queued.
func (c *Consumer) PopRecord(fn func(record []byte)) error {
	g, err := c.Read()
	if err != nil {
		return err
	}
	buf := g.Buf()
	l := int(buf[0])
	if l == 0 || 1+l > len(buf) {
		g.Release(len(buf))
		return fmt.Errorf("%w: length %d with %d bytes readable", ErrCorruptRecord, l, len(buf))
	}
	fn(buf[1 : 1+l])
	g.Release(1 + l)
	return nil
}
