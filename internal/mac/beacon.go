package mac

import (
	"encoding/binary"
	"fmt"
)

// SuperframeSpecification is the 16-bit superframe field of a beacon.
type SuperframeSpecification struct {
	BeaconOrder       uint8
	SuperframeOrder   uint8
	FinalCAPSlot      uint8
	BatteryLifeExt    bool
	PANCoordinator    bool
	AssociationPermit bool
}

func parseSuperframe(v uint16) SuperframeSpecification {
	return SuperframeSpecification{
		BeaconOrder:       uint8(v & 0x0F),
		SuperframeOrder:   uint8(v >> 4 & 0x0F),
		FinalCAPSlot:      uint8(v >> 8 & 0x0F),
		BatteryLifeExt:    v&(1<<12) != 0,
		PANCoordinator:    v&(1<<14) != 0,
		AssociationPermit: v&(1<<15) != 0,
	}
}

// GTSDirection is the direction of a guaranteed time slot.
type GTSDirection uint8

const (
	GTSTransmit GTSDirection = 0
	GTSReceive  GTSDirection = 1
)

func (d GTSDirection) String() string {
	if d == GTSReceive {
		return "Receive"
	}
	return "Transmit"
}

// GTSDescriptor allocates Length slots starting at StartingSlot to a device.
type GTSDescriptor struct {
	Short        uint16
	StartingSlot uint8
	Length       uint8
	Direction    GTSDirection
}

// Beacon is the payload of a beacon frame.
type Beacon struct {
	Superframe      SuperframeSpecification
	GTSPermit       bool
	GTS             []GTSDescriptor
	PendingShort    []uint16
	PendingExtended []uint64
	// Payload is the beacon payload following the pending address lists;
	// for ZigBee it holds the network beacon.
	Payload []byte
}

func (*Beacon) body() {}

func (b *Beacon) String() string {
	sf := b.Superframe
	s := fmt.Sprintf("BO %d SO %d CAP %d", sf.BeaconOrder, sf.SuperframeOrder, sf.FinalCAPSlot)
	if sf.PANCoordinator {
		s += " coordinator"
	}
	if sf.AssociationPermit {
		s += " permit"
	}
	if len(b.GTS) > 0 {
		s += fmt.Sprintf(" gts %d", len(b.GTS))
	}
	if n := len(b.PendingShort) + len(b.PendingExtended); n > 0 {
		s += fmt.Sprintf(" pending %d", n)
	}
	return s
}

func decodeBeacon(p []byte) (*Beacon, error) {
	// Superframe (2), GTS specification (1), pending address specification (1).
	if len(p) < 4 {
		return nil, invalid("beacon payload of %d bytes", len(p))
	}
	b := &Beacon{Superframe: parseSuperframe(binary.LittleEndian.Uint16(p))}
	off := 2

	gtsSpec := p[off]
	off++
	count := int(gtsSpec & 0x07)
	b.GTSPermit = gtsSpec&0x80 != 0
	if count > 0 {
		if len(p) < off+1+3*count {
			return nil, invalid("beacon GTS list of %d descriptors truncated", count)
		}
		directions := p[off]
		off++
		b.GTS = make([]GTSDescriptor, count)
		for i := range b.GTS {
			d := p[off : off+3]
			b.GTS[i] = GTSDescriptor{
				Short:        binary.LittleEndian.Uint16(d),
				StartingSlot: d[2] & 0x0F,
				Length:       d[2] >> 4,
				Direction:    GTSDirection(directions >> i & 1),
			}
			off += 3
		}
	}

	if len(p) < off+1 {
		return nil, invalid("beacon pending address specification missing")
	}
	pending := p[off]
	off++
	nShort := int(pending & 0x07)
	nExt := int(pending >> 4 & 0x07)
	if len(p) < off+2*nShort+8*nExt {
		return nil, invalid("beacon pending list of %d short and %d extended truncated", nShort, nExt)
	}
	if nShort > 0 {
		b.PendingShort = make([]uint16, nShort)
		for i := range b.PendingShort {
			b.PendingShort[i] = binary.LittleEndian.Uint16(p[off:])
			off += 2
		}
	}
	if nExt > 0 {
		b.PendingExtended = make([]uint64, nExt)
		for i := range b.PendingExtended {
			b.PendingExtended[i] = binary.LittleEndian.Uint64(p[off:])
			off += 8
		}
	}
	b.Payload = p[off:]
	return b, nil
}
