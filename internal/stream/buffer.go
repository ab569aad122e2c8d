// Package stream drains the serial frame codec over a live byte stream.
package stream

import (
	"fmt"

	"firestige.xyz/zbridge/internal/core"
)

// Buffer is a fixed-capacity byte container that only grows at the back and
// only shrinks at the front.
type Buffer struct {
	data []byte
	head int
	tail int
}

// NewBuffer allocates a Buffer holding at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Append copies p to the back of the buffer. It fails without appending
// anything when p does not fit.
func (b *Buffer) Append(p []byte) error {
	if len(p) > len(b.data)-b.Len() {
		return fmt.Errorf("%w: %d buffered, %d incoming, capacity %d",
			core.ErrBufferExhausted, b.Len(), len(p), len(b.data))
	}
	if len(p) > len(b.data)-b.tail {
		b.compact()
	}
	b.tail += copy(b.data[b.tail:], p)
	return nil
}

// Consume drops n bytes from the front. n is clamped to Len.
func (b *Buffer) Consume(n int) {
	if n >= b.Len() {
		b.head, b.tail = 0, 0
		return
	}
	b.head += n
}

// Bytes returns the buffered bytes. The slice is valid until the next Append
// or Consume.
func (b *Buffer) Bytes() []byte { return b.data[b.head:b.tail] }

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return b.tail - b.head }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// compact slides the live window to the start of the backing array. It is
// internal storage management; the logical contents do not change.
func (b *Buffer) compact() {
	n := copy(b.data, b.data[b.head:b.tail])
	b.head, b.tail = 0, n
}
