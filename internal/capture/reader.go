package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/mac"
)

var (
	ErrUnsupportedLinkType = errors.New("capture: unsupported link type")
	ErrBadFCS              = errors.New("capture: bad frame check sequence")
)

// Reader reads IEEE 802.15.4 packets from a pcap file.
type Reader struct {
	r      *pcapgo.Reader
	closer io.Closer
}

// Open opens the pcap file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the pcap header from in and checks its link type.
func NewReader(in io.Reader) (*Reader, error) {
	r, err := pcapgo.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	switch r.LinkType() {
	case LinkTypeIEEE802154, LinkTypeIEEE802154NoFCS:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLinkType, r.LinkType())
	}
	return &Reader{r: r}, nil
}

func (r *Reader) LinkType() layers.LinkType { return r.r.LinkType() }

// ReadPacket returns the next packet without its FCS. For files with an FCS
// the checksum is verified first; a mismatch returns ErrBadFCS and the
// reader stays usable. The end of the file is io.EOF.
func (r *Reader) ReadPacket() (core.RadioPacket, error) {
	data, ci, err := r.r.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RadioPacket{}, io.EOF
		}
		return core.RadioPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}
	if r.r.LinkType() == LinkTypeIEEE802154 {
		if ci.CaptureLength < ci.Length || !mac.ValidFCS(data) {
			return core.RadioPacket{Timestamp: ci.Timestamp}, ErrBadFCS
		}
		data = data[:len(data)-mac.FCSLength]
	}
	return core.RadioPacket{Data: data, Timestamp: ci.Timestamp}, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
