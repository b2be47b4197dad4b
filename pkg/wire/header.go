package wire

import (
	"encoding/binary"
	"time"

	"github.com/canbcm/bcm-go/pkg/frame"
)

// Wire layout sizes in bytes. The header layout is the 64-bit kernel
// struct image: three u32 fields, 4 bytes padding, two 16-byte interval
// pairs, then ID and frame count.
const (
	// HeadSize is the size of the message header.
	HeadSize = 56

	// FrameSizeClassic is the size of one classic frame cell.
	FrameSizeClassic = 16

	// FrameSizeFD is the size of one FD frame cell.
	FrameSizeFD = 72

	// EventSizeClassic is the only legal receive-path size for classic
	// frame events.
	EventSizeClassic = HeadSize + FrameSizeClassic

	// EventSizeFD is the only legal receive-path size for FD frame events.
	EventSizeFD = HeadSize + FrameSizeFD

	// MaxSequenceFrames is the maximum number of frames in one atomic
	// cyclic sequence.
	MaxSequenceFrames = 256
)

// Header field offsets.
const (
	offOpcode  = 0
	offFlags   = 4
	offCount   = 8
	offIval1   = 16
	offIval2   = 32
	offID      = 48
	offNFrames = 52
)

// Frame cell field offsets (shared prefix of both layouts).
const (
	offFrameID   = 0
	offFrameLen  = 4
	offFrameData = 8
)

// hostOrder is the byte order of the wire format. The BCM protocol is a
// kernel struct image exchanged on the local machine, so it is always
// host-native.
var hostOrder = binary.NativeEndian

// Timeval is one interval value as a seconds/microseconds pair.
type Timeval struct {
	Sec  int64
	Usec int64
}

// TimevalFromDuration converts a duration to a Timeval.
func TimevalFromDuration(d time.Duration) Timeval {
	return Timeval{
		Sec:  int64(d / time.Second),
		Usec: int64(d % time.Second / time.Microsecond),
	}
}

// Duration converts the Timeval back to a duration.
func (tv Timeval) Duration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// IsZero returns true if both fields are zero.
func (tv Timeval) IsZero() bool {
	return tv.Sec == 0 && tv.Usec == 0
}

// Header is the decoded message header.
type Header struct {
	// Opcode is the message family.
	Opcode Opcode

	// Flags is the option bitfield.
	Flags Flags

	// Count is the number of repetitions at Ival1 before the task
	// switches to Ival2. Zero skips Ival1 entirely.
	Count uint32

	// Ival1 is the initial transmission interval (used Count times).
	Ival1 Timeval

	// Ival2 is the steady-state transmission interval.
	Ival2 Timeval

	// ID is the task identifier. Together with the TX/RX direction it
	// uniquely keys a remote task.
	ID uint32

	// NFrames is the number of frame cells following the header.
	NFrames uint32
}

// frameSize returns the frame cell size selected by the header flags.
func (h Header) frameSize() int {
	if h.Flags.Has(FlagFDFrame) {
		return FrameSizeFD
	}
	return FrameSizeClassic
}

// putHeader writes the header into the first HeadSize bytes of buf.
// buf must be zero-initialized; padding bytes are left untouched.
func putHeader(buf []byte, h Header) {
	hostOrder.PutUint32(buf[offOpcode:], uint32(h.Opcode))
	hostOrder.PutUint32(buf[offFlags:], uint32(h.Flags))
	hostOrder.PutUint32(buf[offCount:], h.Count)
	hostOrder.PutUint64(buf[offIval1:], uint64(h.Ival1.Sec))
	hostOrder.PutUint64(buf[offIval1+8:], uint64(h.Ival1.Usec))
	hostOrder.PutUint64(buf[offIval2:], uint64(h.Ival2.Sec))
	hostOrder.PutUint64(buf[offIval2+8:], uint64(h.Ival2.Usec))
	hostOrder.PutUint32(buf[offID:], h.ID)
	hostOrder.PutUint32(buf[offNFrames:], h.NFrames)
}

// parseHeader reads a header from the first HeadSize bytes of buf.
func parseHeader(buf []byte) Header {
	return Header{
		Opcode: Opcode(hostOrder.Uint32(buf[offOpcode:])),
		Flags:  Flags(hostOrder.Uint32(buf[offFlags:])),
		Count:  hostOrder.Uint32(buf[offCount:]),
		Ival1: Timeval{
			Sec:  int64(hostOrder.Uint64(buf[offIval1:])),
			Usec: int64(hostOrder.Uint64(buf[offIval1+8:])),
		},
		Ival2: Timeval{
			Sec:  int64(hostOrder.Uint64(buf[offIval2:])),
			Usec: int64(hostOrder.Uint64(buf[offIval2+8:])),
		},
		ID:      hostOrder.Uint32(buf[offID:]),
		NFrames: hostOrder.Uint32(buf[offNFrames:]),
	}
}

// putFrame writes one frame cell into buf. The cell layout (classic or
// FD) is the message layout, not the frame's flavor: a classic frame may
// ride in an FD cell, the codec rejects the reverse before calling this.
func putFrame(buf []byte, f frame.Frame) {
	hostOrder.PutUint32(buf[offFrameID:], f.ID)
	buf[offFrameLen] = byte(len(f.Data))
	copy(buf[offFrameData:], f.Data)
}

// parseFrame reads one frame cell from buf.
func parseFrame(buf []byte, fd bool) (frame.Frame, error) {
	flavor := frame.FlavorClassic
	if fd {
		flavor = frame.FlavorFD
	}

	length := int(buf[offFrameLen])
	if length > flavor.MaxDataLen() {
		return frame.Frame{}, errFrameLength(length, flavor)
	}

	f := frame.Frame{
		ID:     hostOrder.Uint32(buf[offFrameID:]),
		Flavor: flavor,
		Data:   append([]byte(nil), buf[offFrameData:offFrameData+length]...),
	}
	return f, nil
}
