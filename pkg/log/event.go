package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ChannelID uniquely identifies the channel (UUID).
	ChannelID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Interface is the bus interface name, when known.
	Interface string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message *MessageEvent `cbor:"6,keyasint,omitempty"` // Wire traffic
	State   *StateEvent   `cbor:"7,keyasint,omitempty"` // Channel/loop state
	Error   *ErrorEvent   `cbor:"8,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an inbound message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outbound message.
	DirectionOut Direction = 1
	// DirectionNone indicates an event without a direction.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an encoded or decoded protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a channel or loop state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one wire message.
type MessageEvent struct {
	// Opcode is the raw message family value.
	Opcode uint32 `cbor:"1,keyasint"`

	// OpcodeName is the human-readable opcode name.
	OpcodeName string `cbor:"2,keyasint,omitempty"`

	// ID is the task identifier carried by the header.
	ID uint32 `cbor:"3,keyasint"`

	// Flags is the raw header flag bitfield.
	Flags uint32 `cbor:"4,keyasint,omitempty"`

	// NFrames is the number of frame cells in the message.
	NFrames uint32 `cbor:"5,keyasint,omitempty"`

	// Size is the total message size in bytes.
	Size int `cbor:"6,keyasint"`
}

// StateEvent captures channel and loop lifecycle changes.
type StateEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEvent captures errors at any layer.
type ErrorEvent struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
