// Package host implements the host side of the bridge: it reads the serial
// link, reassembles frames and reports what the device captured.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/metrics"
	"firestige.xyz/zbridge/internal/stream"
)

// DefaultChunkSize is the size of a single read from the link.
const DefaultChunkSize = 256

// Config configures a Bridge.
type Config struct {
	BufferSize  int // Reassembly buffer capacity
	MessageSize int // Largest decoded payload
	ChunkSize   int // Bytes requested per read
}

// Bridge drives a Reassembler from a byte stream. It is single threaded:
// one goroutine calls Run.
type Bridge struct {
	src   io.Reader
	reasm *stream.Reassembler
	chunk []byte
}

// NewBridge reads from src and dispatches decoded messages to h. The read
// size is reduced when the buffer could not take a full chunk on top of a
// partial message.
func NewBridge(src io.Reader, cfg Config, h stream.Handler) *Bridge {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = stream.DefaultBufferSize
	}
	if cfg.MessageSize <= 0 {
		cfg.MessageSize = stream.DefaultMessageSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if free := cfg.BufferSize - stream.MinBufferSize(cfg.MessageSize, 0); free > 0 && cfg.ChunkSize > free {
		log.GetLogger().
			WithField("chunk_size", cfg.ChunkSize).
			WithField("buffer_size", cfg.BufferSize).
			Warn("read chunk reduced to fit the reassembly buffer")
		cfg.ChunkSize = free
	}
	return &Bridge{
		src: src,
		reasm: stream.NewReassembler(stream.Config{
			BufferSize:  cfg.BufferSize,
			MessageSize: cfg.MessageSize,
			Observer:    resyncObserver{},
		}, h),
		chunk: make([]byte, cfg.ChunkSize),
	}
}

// ReadOnce performs one read and feeds what arrived. A timeout is idle time
// and not an error; other read errors are logged and the link stays in use.
// It returns io.EOF when the stream has ended, and a fatal error when the
// reassembly buffer is exhausted.
func (b *Bridge) ReadOnce() error {
	n, err := b.src.Read(b.chunk)
	if n > 0 {
		if ferr := b.reasm.Feed(b.chunk[:n]); ferr != nil {
			return fmt.Errorf("failed to feed %d bytes: %w", n, ferr)
		}
	}
	switch {
	case err == nil, errors.Is(err, core.ErrTimeout):
		return nil
	case errors.Is(err, io.EOF):
		return io.EOF
	default:
		metrics.SerialReadErrorsTotal.Inc()
		log.GetLogger().WithError(err).Error("serial read failed")
		return nil
	}
}

// Run reads until ctx is done or the stream ends. The end of the stream
// returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.ReadOnce()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}

// Buffered returns the number of bytes waiting for a complete frame.
func (b *Bridge) Buffered() int { return b.reasm.Buffered() }

type resyncObserver struct{}

func (resyncObserver) Resync(discarded int, err error) {
	metrics.ResyncEventsTotal.Inc()
	metrics.ResyncBytesTotal.Add(float64(discarded))
	logger := log.GetLogger()
	if logger.IsDebugEnabled() {
		logger.WithField(core.FieldDiscarded, discarded).WithError(err).Debug("resynchronizing stream")
	}
}
