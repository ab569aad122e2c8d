// Package stub implements an in-memory radio for tests and emulation.
package stub

import (
	"sync"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/radio"
)

// Capacity is the number of packets the driver holds before overwriting.
const Capacity = 64

const ringCapacity = Capacity

type pending struct {
	pkt core.RadioPacket
	err error
}

// Driver is a radio whose packets are injected by the caller. Each Inject
// raises one event; receives pop packets in injection order.
type Driver struct {
	mu     sync.Mutex
	rx     ringBuffer
	events chan struct{}
}

var _ radio.Radio = (*Driver)(nil)

func New() *Driver {
	return &Driver{events: make(chan struct{}, ringCapacity)}
}

// Inject queues a received packet and raises the receive event. When the
// ring is full the oldest packet is overwritten.
func (d *Driver) Inject(data []byte, lqi byte) {
	frame := make([]byte, len(data))
	copy(frame, data)
	d.push(pending{pkt: core.RadioPacket{Data: frame, LQI: lqi}})
}

// InjectError makes the next receive fail with err, as a reception with a
// bad frame check sequence would.
func (d *Driver) InjectError(err error) {
	d.push(pending{err: err})
}

func (d *Driver) push(p pending) {
	d.mu.Lock()
	d.rx.push(p)
	d.mu.Unlock()
	select {
	case d.events <- struct{}{}:
	default:
	}
}

// Pending returns the number of packets not yet received.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rx.count
}

func (d *Driver) Events() <-chan struct{} { return d.events }

func (d *Driver) ReceiveSlice(buf []byte) (int, error) {
	d.mu.Lock()
	p, ok := d.rx.pop()
	d.mu.Unlock()
	if !ok {
		return 0, radio.ErrNoPacket
	}
	if p.err != nil {
		return 0, p.err
	}
	return radio.PutRecord(buf, p.pkt)
}

func (d *Driver) Receive(buf *[radio.MaxPacketLength]byte) (int, error) {
	return d.ReceiveSlice(buf[:])
}

type ringBuffer struct {
	data       [ringCapacity]pending
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(p pending) {
	if rb.count == ringCapacity {
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = p
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() (pending, bool) {
	if rb.count == 0 {
		return pending{}, false
	}
	p := rb.data[rb.head]
	rb.data[rb.head] = pending{}
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return p, true
}
