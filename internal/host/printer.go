package host

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/mac"
	"firestige.xyz/zbridge/internal/metrics"
)

// PacketSink stores received radio packets, e.g. a capture file.
type PacketSink interface {
	WritePacket(p core.RadioPacket) error
}

// PrinterOptions configures a Printer.
type PrinterOptions struct {
	// Sink, if set, receives every radio packet.
	Sink PacketSink
	// Now stamps received packets; defaults to time.Now.
	Now func() time.Time
}

// Printer reports every decoded message on out in a human readable form.
type Printer struct {
	out  io.Writer
	sink PacketSink
	now  func() time.Time
}

// NewPrinter writes reports to out.
func NewPrinter(out io.Writer, opts PrinterOptions) *Printer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Printer{out: out, sink: opts.Sink, now: opts.Now}
}

// HandleMessage implements stream.Handler.
func (p *Printer) HandleMessage(msg core.Message) {
	metrics.FramesTotal.WithLabelValues(msg.Type.String()).Inc()
	if logger := log.GetLogger(); logger.IsTraceEnabled() {
		logger.WithField(core.FieldMessageType, msg.Type.String()).
			WithField(core.FieldFrameLen, len(msg.Payload)).
			Trace("message received")
	}

	switch msg.Type {
	case core.RadioReceive:
		pkt, ok := core.RadioPacketFromMessage(msg, p.now())
		if !ok {
			log.GetLogger().WithField(core.FieldMessageType, msg.Type).Warn("radio packet without link quality")
			return
		}
		p.radioPacket(pkt)
	case core.EnergyDetect:
		if r, ok := core.EnergyReadingFromMessage(msg); ok {
			fmt.Fprintf(p.out, "## Energy on channel %d: %d\n", r.Channel, r.Level)
		}
	default:
		fmt.Fprintf(p.out, "Other packet %s\n", msg.Type)
	}
}

func (p *Printer) radioPacket(pkt core.RadioPacket) {
	fmt.Fprintf(p.out, "## Packet %d LQI %d\n", len(pkt.Data), pkt.LQI)
	fmt.Fprintln(p.out, hex.EncodeToString(pkt.Data))

	logger := log.GetLogger()
	frame, err := mac.DecodeCapture(pkt.Data)
	if err != nil {
		metrics.MacDecodeErrorsTotal.WithLabelValues(mac.Reason(err)).Inc()
		fmt.Fprintf(p.out, "Failed to decode MAC frame, %v\n", err)
		logger.WithError(err).
			WithField(core.FieldPacketLen, len(pkt.Data)).
			WithField(core.FieldLQI, pkt.LQI).
			Debug("MAC decode failed")
	} else {
		h := frame.Header
		metrics.MacFramesTotal.WithLabelValues(h.Type.String()).Inc()
		fmt.Fprintln(p.out, frame)
		if logger.IsDebugEnabled() {
			logger.WithFields(map[string]interface{}{
				core.FieldMACType:     h.Type.String(),
				core.FieldMACSequence: h.Sequence,
				core.FieldMACSrc:      h.Source.String(),
				core.FieldMACDst:      h.Destination.String(),
				core.FieldLQI:         pkt.LQI,
			}).Debug("MAC frame")
		}
	}

	if p.sink != nil {
		// The payload aliases the reassembler's scratch buffer.
		pkt.Data = append([]byte(nil), pkt.Data...)
		if err := p.sink.WritePacket(pkt); err != nil {
			logger.WithError(err).
				WithField(core.FieldPacketLen, len(pkt.Data)).
				Warn("failed to capture packet")
		}
	}
}
