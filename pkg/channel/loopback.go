package channel

import (
	"sync"

	"github.com/google/uuid"
)

// Loopback is an in-memory channel for tests. Sent messages are
// captured in order; inbound messages are queued by the test and handed
// out one per Receive call.
type Loopback struct {
	mu      sync.Mutex
	id      string
	sent    [][]byte
	inbound [][]byte
	sendErr error
	closed  bool
}

// NewLoopback creates an empty loopback channel.
func NewLoopback() *Loopback {
	return &Loopback{id: uuid.NewString()}
}

// ID returns the channel identifier.
func (l *Loopback) ID() string {
	return l.id
}

// Send captures a copy of the message, or fails with the injected error.
func (l *Loopback) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, append([]byte(nil), data...))
	return nil
}

// Receive pops the oldest queued inbound message, or ErrWouldBlock.
func (l *Loopback) Receive(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrClosed
	}
	if len(l.inbound) == 0 {
		return 0, ErrWouldBlock
	}

	msg := l.inbound[0]
	l.inbound = l.inbound[1:]
	return copy(buf, msg), nil
}

// Close closes the channel.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// QueueInbound queues a message for a later Receive call.
func (l *Loopback) QueueInbound(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbound = append(l.inbound, append([]byte(nil), data...))
}

// Sent returns the messages captured so far, in send order.
func (l *Loopback) Sent() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.sent...)
}

// SetSendError makes every subsequent Send fail with err.
// Pass nil to restore normal operation.
func (l *Loopback) SetSendError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// Compile-time interface satisfaction check.
var _ Channel = (*Loopback)(nil)
