// Package replay is a radio that receives the packets of a pcap capture.
package replay

import (
	"context"
	"errors"
	"io"
	"time"

	"firestige.xyz/zbridge/internal/capture"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/radio"
	"firestige.xyz/zbridge/internal/radio/stub"
)

// Options configures playback.
type Options struct {
	// LQI is reported for every packet; captures carry none.
	LQI byte
	// Pace reproduces the capture's inter-packet gaps.
	Pace bool
	// PollInterval is how often Play checks for room while the radio
	// holds unreceived packets.
	PollInterval time.Duration
}

// Driver plays a capture into an in-memory radio.
type Driver struct {
	*stub.Driver
	src  *capture.Reader
	opts Options
}

var _ radio.Radio = (*Driver)(nil)

// Open opens the capture at path.
func Open(path string, opts Options) (*Driver, error) {
	src, err := capture.Open(path)
	if err != nil {
		return nil, err
	}
	return New(src, opts), nil
}

// New plays packets read from src.
func New(src *capture.Reader, opts Options) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Millisecond
	}
	return &Driver{Driver: stub.New(), src: src, opts: opts}
}

// Play receives every packet of the capture, in order, and returns the
// number played. Packets failing their FCS check are received as
// radio.ErrCRC, like a radio reporting a bad reception. Play keeps at most
// half of the radio's buffer pending so that no packet is overwritten. It
// returns at the end of the capture or when ctx is done.
func (d *Driver) Play(ctx context.Context) (int, error) {
	logger := log.GetLogger()
	var played int
	var last time.Time
	for {
		p, err := d.src.ReadPacket()
		switch {
		case errors.Is(err, io.EOF):
			return played, nil
		case errors.Is(err, capture.ErrBadFCS):
			logger.WithField("packet.index", played).Debug("replaying packet with bad FCS")
		case err != nil:
			return played, err
		}

		if d.opts.Pace && !last.IsZero() && p.Timestamp.After(last) {
			if err := sleep(ctx, p.Timestamp.Sub(last)); err != nil {
				return played, err
			}
		}
		if !p.Timestamp.IsZero() {
			last = p.Timestamp
		}

		for d.Pending() >= stub.Capacity/2 {
			if err := sleep(ctx, d.opts.PollInterval); err != nil {
				return played, err
			}
		}
		if err := ctx.Err(); err != nil {
			return played, err
		}

		if err != nil {
			d.InjectError(radio.ErrCRC)
		} else {
			d.Inject(p.Data, d.opts.LQI)
		}
		played++
	}
}

// Close closes the capture.
func (d *Driver) Close() error { return d.src.Close() }

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
