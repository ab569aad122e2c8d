// Package queue implements a lock-free single-producer/single-consumer byte
// ring that hands out contiguous regions (a bipartite buffer).
//
// The producer side runs where it must never block, such as a radio receive
// interrupt: Grant fails immediately with ErrFull and the caller drops the
// packet. The consumer polls Read without blocking.
package queue

import (
	"errors"
	"fmt"
	"sync/atomic"

	"firestige.xyz/zbridge/internal/core"
)

var (
	// ErrFull means n contiguous free bytes are not available right now.
	ErrFull = fmt.Errorf("queue: %w", core.ErrQueueFull)
	// ErrEmpty means nothing is committed and unreleased.
	ErrEmpty = fmt.Errorf("queue: %w", core.ErrQueueEmpty)

	ErrAlreadySplit    = errors.New("queue: already split")
	ErrGrantInProgress = errors.New("queue: grant already in progress")
	ErrInvalidGrant    = errors.New("queue: invalid grant size")
)

// Queue is the shared ring. Construct it once, then Split it and hand each
// half to exactly one goroutine.
type Queue struct {
	buf []byte

	// write is the end of committed data; only the producer stores it.
	write atomic.Uint64
	// read is the start of unreleased data; only the consumer stores it.
	read atomic.Uint64
	// last marks the end of valid data when the producer has wrapped early.
	last atomic.Uint64

	writeInProgress atomic.Bool
	readInProgress  atomic.Bool
	split           atomic.Bool

	committed atomic.Uint64
	released  atomic.Uint64
}

// New allocates a queue of capacity bytes.
func New(capacity int) *Queue {
	q := &Queue{buf: make([]byte, capacity)}
	q.last.Store(uint64(capacity))
	return q
}

// Split returns the producer and consumer handles. It succeeds once.
func (q *Queue) Split() (*Producer, *Consumer, error) {
	if !q.split.CompareAndSwap(false, true) {
		return nil, nil, ErrAlreadySplit
	}
	return &Producer{q: q}, &Consumer{q: q}, nil
}

// Cap returns the total byte capacity.
func (q *Queue) Cap() int { return len(q.buf) }

// Occupancy returns committed minus released bytes. While both halves are
// running the value is a snapshot.
func (q *Queue) Occupancy() int {
	released := q.released.Load()
	committed := q.committed.Load()
	occ := int(committed - released)
	if occ > len(q.buf) {
		occ = len(q.buf)
	}
	return occ
}

// Producer is the write half.
type Producer struct {
	q *Queue
}

// WriteGrant is a reserved, writable region. Exactly one Commit ends it.
type WriteGrant struct {
	q     *Queue
	buf   []byte
	start int
	done  bool
}

// Grant reserves n contiguous bytes. It never blocks: when the space is not
// available it returns ErrFull and the queue is unchanged.
func (p *Producer) Grant(n int) (*WriteGrant, error) {
	q := p.q
	if n <= 0 {
		return nil, ErrInvalidGrant
	}
	if !q.writeInProgress.CompareAndSwap(false, true) {
		return nil, ErrGrantInProgress
	}

	w := int(q.write.Load())
	r := int(q.read.Load())
	capacity := len(q.buf)

	var start int
	switch {
	case w < r:
		// Inverted: free space is [w, r); keep one byte so w never reaches r.
		if w+n >= r {
			q.writeInProgress.Store(false)
			return nil, ErrFull
		}
		start = w
	case w+n <= capacity:
		start = w
	case n < r:
		// Tail too short; wrap to the front.
		start = 0
	default:
		q.writeInProgress.Store(false)
		return nil, ErrFull
	}

	return &WriteGrant{q: q, buf: q.buf[start : start+n], start: start}, nil
}

// Buf returns the writable region.
func (g *WriteGrant) Buf() []byte { return g.buf }

// Commit publishes the first n bytes of the grant to the consumer. n is
// clamped to the grant size; Commit(0) abandons the grant. The atomic store
// of the write index orders every byte written before it ahead of the
// consumer's load.
func (g *WriteGrant) Commit(n int) {
	if g.done {
		return
	}
	g.done = true
	q := g.q
	if n > len(g.buf) {
		n = len(g.buf)
	}
	if n < 0 {
		n = 0
	}

	w := int(q.write.Load())
	last := int(q.last.Load())
	capacity := len(q.buf)
	newWrite := g.start + n

	switch {
	case newWrite < w && w != capacity:
		// Wrapped early; the consumer must stop at the old write index.
		q.last.Store(uint64(w))
	case newWrite > last:
		// Passed the old early-wrap mark; the full ring is valid again.
		q.last.Store(uint64(capacity))
	}

	q.committed.Add(uint64(n))
	q.write.Store(uint64(newWrite))
	q.writeInProgress.Store(false)
}

// Consumer is the read half.
type Consumer struct {
	q *Queue
}

// ReadGrant is a committed, readable region. Exactly one Release ends it.
type ReadGrant struct {
	q     *Queue
	buf   []byte
	start int
	done  bool
}

// Read returns all currently committed, contiguous bytes without blocking.
func (c *Consumer) Read() (*ReadGrant, error) {
	q := c.q
	if !q.readInProgress.CompareAndSwap(false, true) {
		return nil, ErrGrantInProgress
	}

	w := int(q.write.Load())
	last := int(q.last.Load())
	r := int(q.read.Load())

	if r == last && w < r {
		r = 0
		q.read.Store(0)
	}

	var n int
	if w < r {
		n = last - r
	} else {
		n = w - r
	}
	if n == 0 {
		q.readInProgress.Store(false)
		return nil, ErrEmpty
	}
	return &ReadGrant{q: q, buf: q.buf[r : r+n], start: r}, nil
}

// Buf returns the readable region.
func (g *ReadGrant) Buf() []byte { return g.buf }

// Release returns the first n bytes of the region to the producer. n is
// clamped to the region size.
func (g *ReadGrant) Release(n int) {
	if g.done {
		return
	}
	g.done = true
	if n > len(g.buf) {
		n = len(g.buf)
	}
	if n < 0 {
		n = 0
	}
	q := g.q
	q.released.Add(uint64(n))
	q.read.Store(uint64(g.start + n))
	q.readInProgress.Store(false)
}
