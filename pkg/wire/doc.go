// Package wire defines the binary wire format of the broadcast-manager
// (BCM) protocol and the codec for its message families.
//
// A BCM message is a fixed 56-byte header followed by zero or more frame
// cells, all in host-native byte order (the protocol is a kernel struct
// image, not a portable network format). Classic frame cells are 16
// bytes, FD cells 72 bytes; a message never mixes the two layouts.
//
// # Message families
//
// The client emits five families: Send (one frame per message), Setup
// (cyclic TX task, per-frame or as one atomic sequence), Delete (TX or
// RX), and RX filter setup (by ID or by payload mask). The remote side
// emits exactly two opcodes unsolicited: RxChanged and RxTimeout; Decode
// rejects everything else.
//
// # Task identity
//
// A remote task is keyed by (header ID, direction). A sequence setup
// bundles many frames under the single header ID; only that ID can later
// delete the whole sequence. The IDs of the bundled frames are not
// independently addressable.
//
// Interval fields use the 64-bit sec/usec layout (amd64/arm64 kernels);
// the legacy 32-bit layout is not modeled.
package wire
