//go:build linux

package channel

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/canbcm/bcm-go/pkg/log"
)

// BCM is a channel backed by a SocketCAN broadcast-manager socket.
// The socket is connected to one interface and set non-blocking, so
// Receive maps the kernel's EAGAIN to ErrWouldBlock.
type BCM struct {
	fd     int
	id     string
	ifname string
	logger log.Logger
	closed bool
}

// OpenBCM opens a BCM socket on the named CAN interface.
// Pass nil as logger to disable logging.
func OpenBCM(ifname string, logger log.Logger) (*BCM, error) {
	logger = log.OrNoop(logger)

	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("interface %s not found: %w", ifname, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_DGRAM, unix.CAN_BCM)
	if err != nil {
		return nil, fmt.Errorf("failed to create BCM socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to connect BCM socket to %s: %w", ifname, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set BCM socket non-blocking: %w", err)
	}

	ch := &BCM{
		fd:     fd,
		id:     uuid.NewString(),
		ifname: ifname,
		logger: logger,
	}

	logger.Log(log.Event{
		Timestamp: time.Now(),
		ChannelID: ch.id,
		Direction: log.DirectionNone,
		Category:  log.CategoryState,
		Interface: ifname,
		State:     &log.StateEvent{NewState: "open"},
	})

	return ch, nil
}

// ID returns the channel identifier.
func (c *BCM) ID() string {
	return c.id
}

// Interface returns the bus interface name.
func (c *BCM) Interface() string {
	return c.ifname
}

// Send writes one complete protocol message to the socket.
func (c *BCM) Send(data []byte) error {
	if c.closed {
		return ErrClosed
	}
	if _, err := unix.Write(c.fd, data); err != nil {
		return fmt.Errorf("BCM send on %s failed: %w", c.ifname, err)
	}
	return nil
}

// Receive reads one complete protocol message. Returns ErrWouldBlock
// when the socket has nothing pending.
func (c *BCM) Receive(buf []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("BCM receive on %s failed: %w", c.ifname, err)
	}
	return n, nil
}

// Close closes the socket. It is safe to call Close multiple times.
func (c *BCM) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		ChannelID: c.id,
		Direction: log.DirectionNone,
		Category:  log.CategoryState,
		Interface: c.ifname,
		State:     &log.StateEvent{OldState: "open", NewState: "closed"},
	})

	return unix.Close(c.fd)
}

// Compile-time interface satisfaction check.
var _ Channel = (*BCM)(nil)
