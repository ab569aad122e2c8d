package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/metrics"
	"firestige.xyz/zbridge/internal/queue"
	"firestige.xyz/zbridge/internal/radio"
)

// Service is the network stack a Responder drives. Packets are MAC frames
// without their length byte and link quality. Returned fire times are
// absolute timer ticks; zero leaves the timer alone.
type Service interface {
	// Timeout runs the service's periodic work.
	Timeout() (uint32, error)
	// HandleAcknowledge inspects a received frame, acknowledging it if
	// needed, and reports whether the frame is addressed to this device.
	HandleAcknowledge(packet []byte) (bool, error)
	// Receive processes a frame addressed to this device.
	Receive(packet []byte) (uint32, error)
}

// Timer schedules the next Timeout call.
type Timer interface {
	FireAt(tick uint32)
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Radio        radio.Radio
	Queue        *queue.Queue // Split by NewResponder; nil allocates DefaultQueueSize
	Service      Service
	Timer        Timer
	IdleInterval time.Duration
}

// Responder feeds the frames addressed to this device to a Service.
//
// The receive interrupt asks the service whether a frame is for us and
// queues only those; the rx task hands queued frames to the service and the
// timer task runs its timeout. Service calls are serialized.
type Responder struct {
	radio    radio.Radio
	queue    *queue.Queue
	producer *queue.Producer
	consumer *queue.Consumer
	timer    Timer
	idle     time.Duration
	stats    Stats

	mu      sync.Mutex
	service Service

	scratch [radio.MaxPacketLength]byte
}

// NewResponder splits the queue and returns a responder owning both halves.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	switch {
	case cfg.Radio == nil:
		return nil, errors.New("responder: radio is required")
	case cfg.Service == nil:
		return nil, errors.New("responder: service is required")
	case cfg.Timer == nil:
		return nil, errors.New("responder: timer is required")
	}
	if cfg.Queue == nil {
		cfg.Queue = queue.New(DefaultQueueSize)
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	p, c, err := cfg.Queue.Split()
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	return &Responder{
		radio:    cfg.Radio,
		queue:    cfg.Queue,
		producer: p,
		consumer: c,
		timer:    cfg.Timer,
		idle:     cfg.IdleInterval,
		service:  cfg.Service,
	}, nil
}

// Stats returns the responder's counters.
func (r *Responder) Stats() *Stats { return &r.stats }

// OnRadioInterrupt receives the pending packet and queues it if the service
// says it is addressed to this device.
func (r *Responder) OnRadioInterrupt() {
	defer r.stats.Interrupts.Add(1)

	n, err := r.radio.Receive(&r.scratch)
	if err != nil {
		if !errors.Is(err, core.ErrNoPacket) {
			r.stats.RadioErrors.Add(1)
			metrics.RadioErrorsTotal.Inc()
		}
		return
	}
	if n < 2 {
		// A record always carries its length and LQI bytes.
		r.stats.RadioErrors.Add(1)
		metrics.RadioErrorsTotal.Inc()
		log.GetLogger().WithField(core.FieldPacketLen, n).Warn("radio returned a truncated record")
		return
	}
	r.stats.Received.Add(1)
	record := r.scratch[:n]

	r.mu.Lock()
	toMe, err := r.service.HandleAcknowledge(record[1 : n-1])
	r.mu.Unlock()
	if err != nil {
		r.stats.ServiceErrors.Add(1)
		log.GetLogger().WithError(err).Warn("service handle acknowledge failed")
		return
	}
	if !toMe {
		return
	}

	g, err := r.producer.Grant(n)
	if err != nil {
		r.stats.Dropped.Add(1)
		metrics.QueueDropsTotal.Inc()
		return
	}
	copy(g.Buf(), record)
	g.Commit(n)
	metrics.QueueOccupancyBytes.Set(float64(r.queue.Occupancy()))
}

// OnTimer runs the service timeout and re-arms the timer.
func (r *Responder) OnTimer() {
	r.mu.Lock()
	fireAt, err := r.service.Timeout()
	r.mu.Unlock()
	if err != nil {
		r.stats.ServiceErrors.Add(1)
		log.GetLogger().WithError(err).Warn("service timeout failed")
		return
	}
	r.arm(fireAt)
}

// PollOnce hands the oldest queued frame to the service. It reports whether
// a record was consumed.
func (r *Responder) PollOnce() (bool, error) {
	err := r.consumer.PopRecord(func(record []byte) {
		r.mu.Lock()
		fireAt, err := r.service.Receive(record[:len(record)-1])
		r.mu.Unlock()
		if err != nil {
			r.stats.ServiceErrors.Add(1)
			log.GetLogger().WithError(err).Warn("service receive failed")
			return
		}
		r.stats.Sent.Add(1)
		r.arm(fireAt)
	})
	switch {
	case errors.Is(err, queue.ErrEmpty):
		return false, nil
	case err != nil:
		return true, err
	}
	metrics.QueueOccupancyBytes.Set(float64(r.queue.Occupancy()))
	return true, nil
}

func (r *Responder) arm(fireAt uint32) {
	if fireAt > 0 {
		r.timer.FireAt(fireAt)
	}
}

// Run services radio events and timer expiries on one goroutine each and
// drains the queue on the calling goroutine until ctx is done.
func (r *Responder) Run(ctx context.Context, timerEvents <-chan struct{}) error {
	logger := log.GetLogger()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		events := r.radio.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
				r.OnRadioInterrupt()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timerEvents:
				r.OnTimer()
			}
		}
	}()
	defer wg.Wait()

	idle := time.NewTicker(r.idle)
	defer idle.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := r.PollOnce()
		if err != nil {
			logger.WithError(err).Warn("responder poll failed")
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
