package frame

import (
	"errors"
	"fmt"
)

// Frame validation errors.
var (
	// ErrPayloadTooLong indicates the payload exceeds the flavor's bound.
	ErrPayloadTooLong = errors.New("payload exceeds flavor maximum")

	// ErrInvalidFlavor indicates an unknown frame flavor.
	ErrInvalidFlavor = errors.New("invalid frame flavor")
)

// Flavor selects the payload capacity of a frame.
type Flavor uint8

const (
	// FlavorClassic is a classic CAN frame with up to 8 payload bytes.
	FlavorClassic Flavor = 0

	// FlavorFD is a CAN-FD frame with up to 64 payload bytes.
	FlavorFD Flavor = 1
)

// String returns the flavor name.
func (f Flavor) String() string {
	switch f {
	case FlavorClassic:
		return "CLASSIC"
	case FlavorFD:
		return "FD"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the flavor is a known flavor.
func (f Flavor) IsValid() bool {
	return f == FlavorClassic || f == FlavorFD
}

// MaxDataLen returns the maximum payload length for the flavor.
func (f Flavor) MaxDataLen() int {
	switch f {
	case FlavorFD:
		return 64
	default:
		return 8
	}
}

// Frame is a single CAN or CAN-FD frame.
//
// The declared payload length is len(Data); unused trailing capacity of
// the wire image is zero-filled by the codec.
type Frame struct {
	// ID is the frame identifier (filter/routing key).
	ID uint32

	// Flavor determines the payload capacity.
	Flavor Flavor

	// Data is the payload. len(Data) must not exceed Flavor.MaxDataLen().
	Data []byte
}

// New builds a validated frame. The payload is copied.
func New(id uint32, flavor Flavor, data []byte) (Frame, error) {
	f := Frame{
		ID:     id,
		Flavor: flavor,
		Data:   append([]byte(nil), data...),
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// MustNew builds a validated frame and panics on error.
// Intended for tests and static frame tables.
func MustNew(id uint32, flavor Flavor, data []byte) Frame {
	f, err := New(id, flavor, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate checks the frame against its flavor's bound.
func (f Frame) Validate() error {
	if !f.Flavor.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidFlavor, f.Flavor)
	}
	if len(f.Data) > f.Flavor.MaxDataLen() {
		return fmt.Errorf("%w: %d > %d (id 0x%X, %s)",
			ErrPayloadTooLong, len(f.Data), f.Flavor.MaxDataLen(), f.ID, f.Flavor)
	}
	return nil
}

// Len returns the declared payload length.
func (f Frame) Len() int {
	return len(f.Data)
}
