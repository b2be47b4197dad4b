package channel

import (
	"errors"
)

// Channel errors.
var (
	// ErrWouldBlock signals that a non-blocking receive found nothing
	// pending. It is the normal empty outcome, never a failure.
	ErrWouldBlock = errors.New("receive would block")

	// ErrClosed indicates an operation on a closed channel.
	ErrClosed = errors.New("channel is closed")
)

// Channel is the duplex datagram channel consumed by the task layer.
type Channel interface {
	// ID returns a unique identifier for this channel, used to correlate
	// log events.
	ID() string

	// Send writes one complete protocol message.
	Send(data []byte) error

	// Receive reads one complete protocol message into buf and returns
	// its length. Returns ErrWouldBlock when nothing is pending.
	Receive(buf []byte) (int, error)

	// Close releases the channel.
	Close() error
}
