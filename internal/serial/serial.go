// Package serial carries the bridge link over a serial port. A read that
// times out without data is reported as ErrTimeout, the idle signal of the
// host read loop.
package serial

import (
	"fmt"
	"io"
	"time"

	bugst "go.bug.st/serial"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/metrics"
)

var ErrTimeout = fmt.Errorf("serial: %w", core.ErrTimeout)

// Port is the part of a go.bug.st/serial port the bridge uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Options configures Open.
type Options struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Conn is an open serial link.
type Conn struct {
	name string
	port Port
}

// Open opens the named port in 8N1 mode with the given baud rate and read
// timeout.
func Open(name string, opts Options) (*Conn, error) {
	p, err := bugst.Open(name, &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	c, err := New(name, p, opts.ReadTimeout)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an already open port.
func New(name string, p Port, readTimeout time.Duration) (*Conn, error) {
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
	}
	return &Conn{name: name, port: p}, nil
}

// Name returns the port name.
func (c *Conn) Name() string { return c.name }

// Read reads available bytes. It returns ErrTimeout when the read timeout
// expires with nothing received.
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.port.Read(b)
	if n > 0 {
		metrics.SerialBytesTotal.WithLabelValues(metrics.DirectionRx).Add(float64(n))
	}
	if err != nil {
		return n, err
	}
	if n == 0 && len(b) > 0 {
		return 0, ErrTimeout
	}
	return n, nil
}

// Write writes all of b.
func (c *Conn) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := c.port.Write(b[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	metrics.SerialBytesTotal.WithLabelValues(metrics.DirectionTx).Add(float64(written))
	return written, nil
}

func (c *Conn) Close() error { return c.port.Close() }

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
