package stream

import (
	"errors"

	"firestige.xyz/zbridge/internal/codec"
	"firestige.xyz/zbridge/internal/core"
)

const (
	// DefaultBufferSize holds a maximal partial frame plus a full read chunk.
	DefaultBufferSize = 1024
	// DefaultMessageSize bounds a single decoded payload.
	DefaultMessageSize = 256
)

// MinBufferSize is the smallest buffer capacity that never overflows on a
// well-formed stream: the longest unterminated frame Decode keeps for
// messageSize plus one read of chunk bytes.
func MinBufferSize(messageSize, chunk int) int {
	return codec.EncodedLen(messageSize) - 1 + chunk
}

// Handler receives decoded messages. The payload is only valid during the call.
type Handler interface {
	HandleMessage(msg core.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg core.Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg core.Message) { f(msg) }

// ResyncObserver is told how many bytes were dropped to regain frame sync.
type ResyncObserver interface {
	Resync(discarded int, err error)
}

// Config configures a Reassembler.
type Config struct {
	BufferSize  int // Reassembly buffer capacity (default 1024)
	MessageSize int // Largest decoded payload (default 256)
	Observer    ResyncObserver
}

// Reassembler appends incoming chunks and dispatches every complete frame.
// It is not safe for concurrent use; one reader goroutine owns it.
type Reassembler struct {
	buf      *Buffer
	scratch  []byte
	handler  Handler
	observer ResyncObserver
}

// NewReassembler creates a Reassembler dispatching to h.
func NewReassembler(cfg Config, h Handler) *Reassembler {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.MessageSize <= 0 {
		cfg.MessageSize = DefaultMessageSize
	}
	return &Reassembler{
		buf:      NewBuffer(cfg.BufferSize),
		scratch:  make([]byte, cfg.MessageSize),
		handler:  h,
		observer: cfg.Observer,
	}
}

// Buffered returns the number of bytes waiting for a complete frame.
func (r *Reassembler) Buffered() int { return r.buf.Len() }

// Feed appends chunk and drains every frame now available. The only error it
// returns is core.ErrBufferExhausted, which the caller must treat as fatal.
func (r *Reassembler) Feed(chunk []byte) error {
	if err := r.buf.Append(chunk); err != nil {
		return err
	}
	r.drain()
	return nil
}

// drain loops until the codec needs more input. Every iteration either
// consumes a frame or discards at least one byte, so it terminates.
func (r *Reassembler) drain() {
	for {
		typ, used, written, err := codec.Decode(r.buf.Bytes(), r.scratch)
		if err != nil {
			n, ok := codec.InvalidLength(err)
			if !ok {
				// End not found: keep the partial frame.
				return
			}
			r.buf.Consume(n)
			if r.observer != nil {
				r.observer.Resync(n, err)
			}
			continue
		}
		if used == 0 {
			return
		}
		r.handler.HandleMessage(core.Message{Type: typ, Payload: r.scratch[:written]})
		r.buf.Consume(used)
	}
}

// IsFatal reports whether err returned by Feed must stop the pipeline.
func IsFatal(err error) bool {
	return errors.Is(err, core.ErrBufferExhausted)
}
