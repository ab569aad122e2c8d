package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/zbridge/internal/codec"
	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/queue"
	"firestige.xyz/zbridge/internal/radio"
	"firestige.xyz/zbridge/internal/radio/stub"
)

// frames decodes every wire frame in b.
func frames(t *testing.T, b []byte) []core.Message {
	t.Helper()
	var out []core.Message
	scratch := make([]byte, 2*radio.MaxPacketLength)
	for len(b) > 0 {
		typ, used, written, err := codec.Decode(b, scratch)
		require.NoError(t, err)
		require.NotZero(t, used)
		out = append(out, core.Message{Type: typ, Payload: scratch[:written]}.Clone())
		b = b[used:]
	}
	return out
}

func newListener(t *testing.T, q *queue.Queue, uart *bytes.Buffer) (*Listener, *stub.Driver) {
	t.Helper()
	r := stub.New()
	l, err := NewListener(ListenerConfig{Radio: r, Queue: q, UART: uart})
	require.NoError(t, err)
	return l, r
}

func TestListenerForwardsPackets(t *testing.T) {
	var uart bytes.Buffer
	l, r := newListener(t, nil, &uart)

	packets := [][]byte{
		{0x41, 0x88, 0x01, 0x34, 0x12, 0x78, 0x56, 0xBC, 0x9A},
		{0x02, 0x00, 0x07},
		{0x00, 0x00, 0x00, 0x01},
	}
	for i, p := range packets {
		r.Inject(p, byte(0xA0+i))
		l.OnRadioInterrupt()
	}
	for range packets {
		handled, err := l.PollOnce()
		require.NoError(t, err)
		assert.True(t, handled)
	}
	handled, err := l.PollOnce()
	require.NoError(t, err)
	assert.False(t, handled)

	msgs := frames(t, uart.Bytes())
	require.Len(t, msgs, len(packets))
	for i, m := range msgs {
		assert.Equal(t, core.RadioReceive, m.Type)
		pkt, ok := core.RadioPacketFromMessage(m, time.Time{})
		require.True(t, ok)
		assert.Equal(t, packets[i], pkt.Data)
		assert.Equal(t, byte(0xA0+i), pkt.LQI)
	}
	assert.Equal(t, uint64(3), l.Stats().Received.Load())
	assert.Equal(t, uint64(3), l.Stats().Sent.Load())
}

func TestListenerDropsOnFullQueue(t *testing.T) {
	var uart bytes.Buffer
	l, r := newListener(t, queue.New(radio.MaxPacketLength), &uart)

	r.Inject([]byte{1, 2, 3}, 1)
	l.OnRadioInterrupt()
	r.Inject([]byte{4, 5, 6}, 2)
	l.OnRadioInterrupt()

	assert.Equal(t, 0, r.Pending(), "dropped packet must still be drained from the radio")
	assert.Equal(t, uint64(1), l.Stats().Dropped.Load())

	handled, err := l.PollOnce()
	require.NoError(t, err)
	assert.True(t, handled)
	msgs := frames(t, uart.Bytes())
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{1, 2, 3, 1}, msgs[0].Payload)
}

func TestListenerRadioErrors(t *testing.T) {
	var uart bytes.Buffer
	l, r := newListener(t, nil, &uart)

	// Spurious interrupt: nothing pending is not an error.
	l.OnRadioInterrupt()
	r.InjectError(radio.ErrCRC)
	l.OnRadioInterrupt()

	assert.Equal(t, uint64(1), l.Stats().RadioErrors.Load())
	assert.Equal(t, uint64(2), l.Stats().Interrupts.Load())
	handled, err := l.PollOnce()
	require.NoError(t, err)
	assert.False(t, handled, "a failed receive must commit nothing")
	assert.Zero(t, uart.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("uart gone") }

func TestListenerWriteError(t *testing.T) {
	r := stub.New()
	q := queue.New(DefaultQueueSize)
	l, err := NewListener(ListenerConfig{Radio: r, Queue: q, UART: failingWriter{}})
	require.NoError(t, err)

	r.Inject([]byte{1, 2}, 3)
	l.OnRadioInterrupt()
	handled, err := l.PollOnce()
	assert.True(t, handled)
	assert.ErrorContains(t, err, "uart gone")
	assert.Equal(t, uint64(1), l.Stats().WriteErrors.Load())
	assert.Zero(t, q.Occupancy(), "the record is released even when the write fails")
}

func TestNewListenerValidation(t *testing.T) {
	var uart bytes.Buffer
	_, err := NewListener(ListenerConfig{UART: &uart})
	assert.Error(t, err)
	_, err = NewListener(ListenerConfig{Radio: stub.New()})
	assert.Error(t, err)

	q := queue.New(DefaultQueueSize)
	_, _, err = q.Split()
	require.NoError(t, err)
	_, err = NewListener(ListenerConfig{Radio: stub.New(), Queue: q, UART: &uart})
	assert.ErrorIs(t, err, queue.ErrAlreadySplit)
}

func TestListenerRun(t *testing.T) {
	var uart bytes.Buffer
	l, r := newListener(t, nil, &uart)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	const total = 40
	for i := 0; i < total; i++ {
		for r.Pending() >= stub.Capacity/2 {
			time.Sleep(time.Millisecond)
		}
		r.Inject([]byte{0x01, 0x88, byte(i)}, 0x7F)
	}
	require.Eventually(t, func() bool { return l.Drained(total) }, 5*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	msgs := frames(t, uart.Bytes())
	require.Len(t, msgs, total)
	for i, m := range msgs {
		assert.Equal(t, []byte{0x01, 0x88, byte(i), 0x7F}, m.Payload)
	}
	assert.Zero(t, l.Stats().Dropped.Load())
}
