// Package capture writes received radio packets to pcap files readable by
// Wireshark and reads them back.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/mac"
	"firestige.xyz/zbridge/internal/metrics"
)

// IEEE 802.15.4 link types.
const (
	// LinkTypeIEEE802154 frames end with the 2-byte FCS.
	LinkTypeIEEE802154 = layers.LinkType(195)
	// LinkTypeIEEE802154NoFCS frames carry no FCS.
	LinkTypeIEEE802154NoFCS = layers.LinkType(230)
)

// DefaultSnapLen covers the largest 802.15.4 PSDU.
const DefaultSnapLen = 256

// Options configures a Writer.
type Options struct {
	// SynthesizeFCS appends a computed FCS to every packet and selects
	// LinkTypeIEEE802154; otherwise packets are written as received under
	// LinkTypeIEEE802154NoFCS.
	SynthesizeFCS bool
	SnapLen       uint32
}

// Writer is a pcap sink. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	opts   Options
	count  int
}

// Create creates (or truncates) the file at path and writes the pcap header.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file %s: %w", path, err)
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the pcap header to out.
func NewWriter(out io.Writer, opts Options) (*Writer, error) {
	if opts.SnapLen == 0 {
		opts.SnapLen = DefaultSnapLen
	}
	w := &Writer{w: pcapgo.NewWriter(out), opts: opts}
	if err := w.w.WriteFileHeader(opts.SnapLen, w.LinkType()); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return w, nil
}

// LinkType returns the link type the file is written with.
func (w *Writer) LinkType() layers.LinkType {
	if w.opts.SynthesizeFCS {
		return LinkTypeIEEE802154
	}
	return LinkTypeIEEE802154NoFCS
}

// WritePacket appends one packet. A zero timestamp is replaced by the
// current time.
func (w *Writer) WritePacket(p core.RadioPacket) error {
	data := p.Data
	if w.opts.SynthesizeFCS {
		data = mac.AppendFCS(append(make([]byte, 0, len(data)+mac.FCSLength), data...))
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	captured := data
	if uint32(len(captured)) > w.opts.SnapLen {
		captured = captured[:w.opts.SnapLen]
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(captured),
		Length:        len(data),
	}, captured)
	if err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	w.count++
	metrics.CapturedPacketsTotal.Inc()
	return nil
}

// Count returns the number of packets written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file, if Create opened one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
