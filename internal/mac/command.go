package mac

import (
	"encoding/binary"
	"fmt"
)

// CommandID identifies a MAC command.
type CommandID uint8

const (
	CmdAssociationRequest         CommandID = 0x01
	CmdAssociationResponse        CommandID = 0x02
	CmdDisassociationNotification CommandID = 0x03
	CmdDataRequest                CommandID = 0x04
	CmdPanIDConflictNotification  CommandID = 0x05
	CmdOrphanNotification         CommandID = 0x06
	CmdBeaconRequest              CommandID = 0x07
	CmdCoordinatorRealignment     CommandID = 0x08
	CmdGTSRequest                 CommandID = 0x09
)

var commandNames = map[CommandID]string{
	CmdAssociationRequest:         "AssociationRequest",
	CmdAssociationResponse:        "AssociationResponse",
	CmdDisassociationNotification: "DisassociationNotification",
	CmdDataRequest:                "DataRequest",
	CmdPanIDConflictNotification:  "PanIdConflictNotification",
	CmdOrphanNotification:         "OrphanNotification",
	CmdBeaconRequest:              "BeaconRequest",
	CmdCoordinatorRealignment:     "CoordinatorRealignment",
	CmdGTSRequest:                 "GtsRequest",
}

func (id CommandID) String() string {
	if s, ok := commandNames[id]; ok {
		return s
	}
	return fmt.Sprintf("Command(0x%02x)", uint8(id))
}

// Command is the decoded payload of a MAC command frame.
type Command interface {
	Body
	ID() CommandID
}

// CapabilityInformation is the capability field of an association request.
type CapabilityInformation struct {
	AlternatePANCoordinator bool
	FullFunctionDevice      bool
	MainsPower              bool
	ReceiverOnWhenIdle      bool
	SecurityCapable         bool
	AllocateAddress         bool
}

func parseCapability(b byte) CapabilityInformation {
	return CapabilityInformation{
		AlternatePANCoordinator: b&0x01 != 0,
		FullFunctionDevice:      b&0x02 != 0,
		MainsPower:              b&0x04 != 0,
		ReceiverOnWhenIdle:      b&0x08 != 0,
		SecurityCapable:         b&0x40 != 0,
		AllocateAddress:         b&0x80 != 0,
	}
}

// AssociationStatus is the status field of an association response.
type AssociationStatus uint8

const (
	AssociationSuccessful      AssociationStatus = 0x00
	AssociationPANAtCapacity   AssociationStatus = 0x01
	AssociationPANAccessDenied AssociationStatus = 0x02
)

func (s AssociationStatus) String() string {
	switch s {
	case AssociationSuccessful:
		return "Successful"
	case AssociationPANAtCapacity:
		return "PANAtCapacity"
	case AssociationPANAccessDenied:
		return "PANAccessDenied"
	default:
		return fmt.Sprintf("AssociationStatus(0x%02x)", uint8(s))
	}
}

// DisassociationReason is the reason field of a disassociation notification.
type DisassociationReason uint8

const (
	CoordinatorLeave DisassociationReason = 0x01
	DeviceLeave      DisassociationReason = 0x02
)

func (r DisassociationReason) String() string {
	switch r {
	case CoordinatorLeave:
		return "CoordinatorLeave"
	case DeviceLeave:
		return "DeviceLeave"
	default:
		return fmt.Sprintf("DisassociationReason(0x%02x)", uint8(r))
	}
}

type AssociationRequest struct {
	Capability CapabilityInformation
}

type AssociationResponse struct {
	Short  uint16
	Status AssociationStatus
}

type DisassociationNotification struct {
	Reason DisassociationReason
}

type DataRequest struct{}

type PanIDConflictNotification struct{}

type OrphanNotification struct{}

type BeaconRequest struct{}

// CoordinatorRealignment is sent by a coordinator in answer to an orphan
// notification or when its PAN parameters change.
type CoordinatorRealignment struct {
	PAN            uint16
	Coordinator    uint16
	Channel        uint8
	Short          uint16
	ChannelPage    uint8
	HasChannelPage bool
}

// GTSRequest asks the PAN coordinator to allocate or deallocate a slot.
type GTSRequest struct {
	Length     uint8
	Direction  GTSDirection
	Allocation bool
}

func (*AssociationRequest) body()         {}
func (*AssociationResponse) body()        {}
func (*DisassociationNotification) body() {}
func (*DataRequest) body()                {}
func (*PanIDConflictNotification) body()  {}
func (*OrphanNotification) body()         {}
func (*BeaconRequest) body()              {}
func (*CoordinatorRealignment) body()     {}
func (*GTSRequest) body()                 {}

func (*AssociationRequest) ID() CommandID         { return CmdAssociationRequest }
func (*AssociationResponse) ID() CommandID        { return CmdAssociationResponse }
func (*DisassociationNotification) ID() CommandID { return CmdDisassociationNotification }
func (*DataRequest) ID() CommandID                { return CmdDataRequest }
func (*PanIDConflictNotification) ID() CommandID  { return CmdPanIDConflictNotification }
func (*OrphanNotification) ID() CommandID         { return CmdOrphanNotification }
func (*BeaconRequest) ID() CommandID              { return CmdBeaconRequest }
func (*CoordinatorRealignment) ID() CommandID     { return CmdCoordinatorRealignment }
func (*GTSRequest) ID() CommandID                 { return CmdGTSRequest }

// commandLength is the size of each command's fields after the identifier.
var commandLength = map[CommandID]int{
	CmdAssociationRequest:         1,
	CmdAssociationResponse:        3,
	CmdDisassociationNotification: 1,
	CmdDataRequest:                0,
	CmdPanIDConflictNotification:  0,
	CmdOrphanNotification:         0,
	CmdBeaconRequest:              0,
	CmdCoordinatorRealignment:     7,
	CmdGTSRequest:                 1,
}

func decodeCommand(p []byte) (Command, error) {
	id := CommandID(p[0])
	fields := p[1:]
	want, ok := commandLength[id]
	if !ok {
		return nil, invalid("unknown command 0x%02x", p[0])
	}
	switch {
	case id == CmdCoordinatorRealignment && len(fields) == want+1:
		// 2006 frames may append the channel page.
	case len(fields) != want:
		return nil, invalid("%s with %d bytes of fields, want %d", id, len(fields), want)
	}

	switch id {
	case CmdAssociationRequest:
		return &AssociationRequest{Capability: parseCapability(fields[0])}, nil
	case CmdAssociationResponse:
		return &AssociationResponse{
			Short:  binary.LittleEndian.Uint16(fields),
			Status: AssociationStatus(fields[2]),
		}, nil
	case CmdDisassociationNotification:
		return &DisassociationNotification{Reason: DisassociationReason(fields[0])}, nil
	case CmdDataRequest:
		return &DataRequest{}, nil
	case CmdPanIDConflictNotification:
		return &PanIDConflictNotification{}, nil
	case CmdOrphanNotification:
		return &OrphanNotification{}, nil
	case CmdBeaconRequest:
		return &BeaconRequest{}, nil
	case CmdCoordinatorRealignment:
		c := &CoordinatorRealignment{
			PAN:         binary.LittleEndian.Uint16(fields),
			Coordinator: binary.LittleEndian.Uint16(fields[2:]),
			Channel:     fields[4],
			Short:       binary.LittleEndian.Uint16(fields[5:]),
		}
		if len(fields) == 8 {
			c.ChannelPage = fields[7]
			c.HasChannelPage = true
		}
		return c, nil
	case CmdGTSRequest:
		return &GTSRequest{
			Length:     fields[0] & 0x0F,
			Direction:  GTSDirection(fields[0] >> 4 & 1),
			Allocation: fields[0]&0x20 != 0,
		}, nil
	}
	return nil, invalid("unknown command 0x%02x", p[0])
}
