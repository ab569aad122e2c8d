// Package mac decodes IEEE 802.15.4 MAC frames: the header with its
// variable addressing fields, and the Beacon and MAC command payloads.
package mac

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FrameType is the 3-bit frame type of the frame control field.
type FrameType uint8

const (
	FrameBeacon          FrameType = 0
	FrameData            FrameType = 1
	FrameAcknowledgement FrameType = 2
	FrameMacCommand      FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case FrameBeacon:
		return "Beacon"
	case FrameData:
		return "Data"
	case FrameAcknowledgement:
		return "Acknowledgement"
	case FrameMacCommand:
		return "MacCommand"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// AddressMode selects the size of an addressing field.
type AddressMode uint8

const (
	AddressNone     AddressMode = 0
	addressReserved AddressMode = 1
	AddressShort    AddressMode = 2
	AddressExtended AddressMode = 3
)

func (m AddressMode) String() string {
	switch m {
	case AddressNone:
		return "None"
	case AddressShort:
		return "Short"
	case AddressExtended:
		return "Extended"
	default:
		return fmt.Sprintf("AddressMode(%d)", uint8(m))
	}
}

// FrameVersion is the 2-bit frame version of the frame control field.
type FrameVersion uint8

const (
	Version2003 FrameVersion = 0
	Version2006 FrameVersion = 1
)

// BroadcastShort is the short broadcast address and PAN id.
const BroadcastShort uint16 = 0xFFFF

// Address is a MAC address: absent, a PAN plus 16-bit short address, or a
// PAN plus 64-bit extended address.
type Address struct {
	Mode     AddressMode
	PAN      uint16
	Short    uint16
	Extended uint64
}

// Present reports whether the address field exists in the frame.
func (a Address) Present() bool { return a.Mode != AddressNone }

// IsBroadcast reports whether a is the short broadcast address.
func (a Address) IsBroadcast() bool {
	return a.Mode == AddressShort && a.Short == BroadcastShort
}

func (a Address) String() string {
	switch a.Mode {
	case AddressNone:
		return "none"
	case AddressShort:
		return fmt.Sprintf("%04x:%04x", a.PAN, a.Short)
	case AddressExtended:
		return fmt.Sprintf("%04x:%016x", a.PAN, a.Extended)
	default:
		return a.Mode.String()
	}
}

// Header is the decoded MAC header.
type Header struct {
	Type          FrameType
	FramePending  bool
	AckRequest    bool
	PANIDCompress bool
	Version       FrameVersion
	Sequence      uint8
	Destination   Address
	Source        Address
}

// Body is the type-specific interpretation of a frame payload. It is one of
// *Beacon or a Command (*AssociationRequest, *AssociationResponse,
// *DisassociationNotification, *DataRequest, *PanIDConflictNotification,
// *OrphanNotification, *BeaconRequest, *CoordinatorRealignment,
// *GTSRequest).
type Body interface {
	body()
}

// Frame is a decoded MAC frame. Payload excludes the frame check sequence
// and aliases the decoded input.
type Frame struct {
	Header  Header
	Payload []byte
	Body    Body
	FCS     uint16
}

// HasPayload reports whether the frame carries any payload bytes.
func (f Frame) HasPayload() bool { return len(f.Payload) > 0 }

// Beacon returns the beacon body, if any.
func (f Frame) Beacon() (*Beacon, bool) {
	b, ok := f.Body.(*Beacon)
	return b, ok
}

// Command returns the MAC command body, if any.
func (f Frame) Command() (Command, bool) {
	c, ok := f.Body.(Command)
	return c, ok
}

func (f Frame) String() string {
	var sb strings.Builder
	h := f.Header
	fmt.Fprintf(&sb, "%s seq %d", h.Type, h.Sequence)
	if h.Destination.Present() {
		fmt.Fprintf(&sb, " dst %s", h.Destination)
	}
	if h.Source.Present() {
		fmt.Fprintf(&sb, " src %s", h.Source)
	}
	if h.FramePending {
		sb.WriteString(" pending")
	}
	if h.AckRequest {
		sb.WriteString(" ack-request")
	}
	switch b := f.Body.(type) {
	case *Beacon:
		fmt.Fprintf(&sb, " %s", b)
	case Command:
		fmt.Fprintf(&sb, " %s", b.ID())
	case nil:
		if f.HasPayload() {
			fmt.Fprintf(&sb, " payload %s", hex.EncodeToString(f.Payload))
		}
	}
	return sb.String()
}
