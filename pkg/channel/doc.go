// Package channel abstracts the duplex datagram channel that carries
// broadcast-manager messages.
//
// The package defines the narrow Channel interface the task layer
// consumes, a Linux implementation backed by a SocketCAN BCM socket, and
// an in-memory Loopback used in tests.
//
// Receive is non-blocking: when nothing is pending it returns
// ErrWouldBlock, which is the normal empty signal of the poll loop, not
// a failure. Channels are not required to be safe for concurrent use;
// hosts that share one across goroutines own that guarantee.
package channel
