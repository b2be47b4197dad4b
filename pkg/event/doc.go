// Package event maps decoded inbound messages to the two event kinds a
// broadcast manager emits and dispatches them to an application sink.
//
// Classification is a pure function; the wire codec has already rejected
// every opcode the remote side is not permitted to send, so the
// classifier only ever sees content changes and timeouts. The sink must
// not block the poll loop — if it cannot accept synchronously, queueing
// is the sink's responsibility.
package event
