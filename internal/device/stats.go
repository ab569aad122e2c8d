package device

import "sync/atomic"

// Stats counts what a device pipeline did. Counters are updated by the
// pipeline goroutines and may be read from any goroutine.
type Stats struct {
	Interrupts    atomic.Uint64
	Received      atomic.Uint64
	Dropped       atomic.Uint64
	RadioErrors   atomic.Uint64
	Sent          atomic.Uint64
	EncodeErrors  atomic.Uint64
	WriteErrors   atomic.Uint64
	ServiceErrors atomic.Uint64
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	s.Interrupts.Store(0)
	s.Received.Store(0)
	s.Dropped.Store(0)
	s.RadioErrors.Store(0)
	s.Sent.Store(0)
	s.EncodeErrors.Store(0)
	s.WriteErrors.Store(0)
	s.ServiceErrors.Store(0)
}
