// Package device implements the radio side of the bridge: pipelines that move
// packets from a radio's receive interrupt through the packet queue to the
// background task that handles them.
//
// The Listener forwards every packet over the serial link. The Responder
// hands packets to a protocol Service and a Timer, which the embedding
// firmware supplies; this package ships no Service of its own.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"firestige.xyz/zbridge/internal/codec"
	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/metrics"
	"firestige.xyz/zbridge/internal/queue"
	"firestige.xyz/zbridge/internal/radio"
)

const (
	// DefaultQueueSize holds 16 maximal packets.
	DefaultQueueSize = 16 * radio.MaxPacketLength
	// DefaultIdleInterval is how long the poll loop sleeps on an empty queue.
	DefaultIdleInterval = time.Millisecond
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Radio        radio.Radio
	Queue        *queue.Queue // Split by NewListener; nil allocates DefaultQueueSize
	UART         io.Writer
	IdleInterval time.Duration
}

// Listener forwards every received radio packet to the host as a
// RadioReceive frame.
//
// OnRadioInterrupt is the producer and runs on one goroutine; PollOnce is
// the consumer and runs on another. They share only the queue.
type Listener struct {
	radio    radio.Radio
	queue    *queue.Queue
	producer *queue.Producer
	consumer *queue.Consumer
	uart     io.Writer
	idle     time.Duration
	stats    Stats

	// producer side
	scratch [radio.MaxPacketLength]byte
	// consumer side
	hostPacket [2 * radio.MaxPacketLength]byte
}

// NewListener splits the queue and returns a listener owning both halves.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Radio == nil {
		return nil, errors.New("listener: radio is required")
	}
	if cfg.UART == nil {
		return nil, errors.New("listener: uart is required")
	}
	if cfg.Queue == nil {
		cfg.Queue = queue.New(DefaultQueueSize)
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	p, c, err := cfg.Queue.Split()
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}
	return &Listener{
		radio:    cfg.Radio,
		queue:    cfg.Queue,
		producer: p,
		consumer: c,
		uart:     cfg.UART,
		idle:     cfg.IdleInterval,
	}, nil
}

// Stats returns the listener's counters.
func (l *Listener) Stats() *Stats { return &l.stats }

// OnRadioInterrupt receives the pending packet straight into a queue grant.
// When the queue cannot take a maximal packet the packet is received into a
// scratch buffer and dropped.
func (l *Listener) OnRadioInterrupt() {
	defer l.stats.Interrupts.Add(1)

	g, err := l.producer.Grant(radio.MaxPacketLength)
	if err != nil {
		// Full: the radio still has to be drained.
		_, _ = l.radio.Receive(&l.scratch)
		l.stats.Dropped.Add(1)
		metrics.QueueDropsTotal.Inc()
		if logger := log.GetLogger(); logger.IsDebugEnabled() {
			logger.WithField(core.FieldQueueLen, l.queue.Occupancy()).Debug("queue full, packet dropped")
		}
		return
	}

	n, err := l.radio.ReceiveSlice(g.Buf())
	if err != nil {
		g.Commit(0)
		if !errors.Is(err, core.ErrNoPacket) {
			l.stats.RadioErrors.Add(1)
			metrics.RadioErrorsTotal.Inc()
		}
		return
	}
	g.Commit(n)
	l.stats.Received.Add(1)
	metrics.QueueOccupancyBytes.Set(float64(l.queue.Occupancy()))
}

// PollOnce encodes the oldest queued packet and writes it to the UART. It
// reports whether a record was consumed.
func (l *Listener) PollOnce() (bool, error) {
	var werr error
	err := l.consumer.PopRecord(func(record []byte) {
		written, err := codec.Encode(core.RadioReceive, record, l.hostPacket[:])
		if err != nil {
			l.stats.EncodeErrors.Add(1)
			log.GetLogger().WithError(err).Warn("Failed to encode packet")
			return
		}
		if _, err := l.uart.Write(l.hostPacket[:written]); err != nil {
			l.stats.WriteErrors.Add(1)
			werr = fmt.Errorf("failed to write packet: %w", err)
			return
		}
		l.stats.Sent.Add(1)
	})
	switch {
	case errors.Is(err, queue.ErrEmpty):
		return false, nil
	case err != nil:
		return true, err
	}
	metrics.QueueOccupancyBytes.Set(float64(l.queue.Occupancy()))
	return true, werr
}

// Run services radio events on one goroutine and drains the queue on the
// calling goroutine until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	logger := log.GetLogger()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		events := l.radio.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
				l.OnRadioInterrupt()
			}
		}
	}()
	defer wg.Wait()

	idle := time.NewTicker(l.idle)
	defer idle.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := l.PollOnce()
		if err != nil {
			logger.WithError(err).Warn("listener poll failed")
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		}
	}
}

// Drained reports whether every packet behind the first n interrupts has
// left the queue.
func (l *Listener) Drained(n uint64) bool {
	return l.stats.Interrupts.Load() >= n && l.queue.Occupancy() == 0
}
