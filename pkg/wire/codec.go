package wire

import (
	"errors"
	"fmt"

	"github.com/canbcm/bcm-go/pkg/frame"
)

// Codec errors.
var (
	// ErrUnexpectedSize indicates a buffer length matching neither legal
	// message layout. The stream framing may be desynchronized.
	ErrUnexpectedSize = errors.New("unexpected message size")

	// ErrUnexpectedOpcode indicates an inbound opcode the remote side is
	// not permitted to emit unsolicited.
	ErrUnexpectedOpcode = errors.New("unexpected opcode")

	// ErrNoFrames indicates an operation that requires at least one frame.
	ErrNoFrames = errors.New("no frames given")

	// ErrSequenceTooLong indicates a sequence beyond MaxSequenceFrames.
	ErrSequenceTooLong = errors.New("sequence too long")

	// ErrFlavorMismatch indicates an FD frame in a classic-layout message.
	ErrFlavorMismatch = errors.New("FD frame in classic message")

	// ErrParamArity indicates a per-frame parameter slice whose length
	// matches neither 1 nor the number of frames.
	ErrParamArity = errors.New("parameter count does not match frame count")
)

func errFrameLength(length int, flavor frame.Flavor) error {
	return fmt.Errorf("%w: frame length byte %d exceeds %s capacity",
		ErrUnexpectedSize, length, flavor)
}

// IDPolicy selects which identifier is stamped on the header of
// operations that emit one message per frame. Both conventions appear in
// valid BCM usage.
type IDPolicy uint8

const (
	// IDPerFrame keys each message by its frame's own identifier.
	IDPerFrame IDPolicy = 0

	// IDShared keys every message by one caller-supplied identifier.
	IDShared IDPolicy = 1
)

// String returns the policy name.
func (p IDPolicy) String() string {
	switch p {
	case IDPerFrame:
		return "PER_FRAME"
	case IDShared:
		return "SHARED"
	default:
		return "UNKNOWN"
	}
}

// Direction distinguishes transmission tasks from receive filters when
// addressing a remote task for deletion.
type Direction uint8

const (
	// DirectionTx addresses a cyclic transmission task.
	DirectionTx Direction = 0

	// DirectionRx addresses a receive filter.
	DirectionRx Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionTx:
		return "TX"
	case DirectionRx:
		return "RX"
	default:
		return "UNKNOWN"
	}
}

// CyclicParams carries the repetition schedule of one cyclic task:
// Count transmissions at Ival1, then Ival2 until the task is deleted.
type CyclicParams struct {
	Count uint32
	Ival1 Timeval
	Ival2 Timeval
}

// encodeMessage builds one complete wire message. It assumes the header
// NFrames field matches len(frames) and that flavor checks already ran.
func encodeMessage(h Header, frames []frame.Frame) []byte {
	size := h.frameSize()
	buf := make([]byte, HeadSize+len(frames)*size)
	putHeader(buf, h)
	for i, f := range frames {
		putFrame(buf[HeadSize+i*size:], f)
	}
	return buf
}

// checkFrames validates every frame and the flavor/layout pairing.
func checkFrames(frames []frame.Frame, fd bool) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	for _, f := range frames {
		if err := f.Validate(); err != nil {
			return err
		}
		if !fd && f.Flavor == frame.FlavorFD {
			return fmt.Errorf("%w: id 0x%X", ErrFlavorMismatch, f.ID)
		}
	}
	return nil
}

// layoutFlags returns the base flag set for the chosen layout.
func layoutFlags(fd bool) Flags {
	if fd {
		return FlagFDFrame
	}
	return 0
}

// EncodeSend builds send-once messages, one per frame. The protocol's
// send opcode transmits exactly one frame per message; callers send the
// returned buffers in order.
func EncodeSend(frames []frame.Frame, policy IDPolicy, sharedID uint32, fd bool) ([][]byte, error) {
	if err := checkFrames(frames, fd); err != nil {
		return nil, err
	}

	msgs := make([][]byte, 0, len(frames))
	for _, f := range frames {
		h := Header{
			Opcode:  OpTxSend,
			Flags:   layoutFlags(fd),
			NFrames: 1,
		}
		if policy == IDShared {
			h.ID = sharedID
		} else {
			h.ID = f.ID
		}
		msgs = append(msgs, encodeMessage(h, []frame.Frame{f}))
	}
	return msgs, nil
}

// EncodeSetupPerFrame builds one independent cyclic task per frame, each
// with its own schedule. params holds either a single element applied to
// every frame or one element per frame. Every resulting task is
// independently cancellable by the identifier its header carries.
func EncodeSetupPerFrame(frames []frame.Frame, params []CyclicParams, policy IDPolicy, sharedID uint32, fd, announce bool) ([][]byte, error) {
	if err := checkFrames(frames, fd); err != nil {
		return nil, err
	}
	if len(params) != 1 && len(params) != len(frames) {
		return nil, fmt.Errorf("%w: %d params for %d frames", ErrParamArity, len(params), len(frames))
	}

	flags := layoutFlags(fd) | FlagSetTimer | FlagStartTimer
	if announce {
		flags |= FlagTxAnnounce
	}

	msgs := make([][]byte, 0, len(frames))
	for i, f := range frames {
		p := params[0]
		if len(params) > 1 {
			p = params[i]
		}
		h := Header{
			Opcode:  OpTxSetup,
			Flags:   flags,
			Count:   p.Count,
			Ival1:   p.Ival1,
			Ival2:   p.Ival2,
			NFrames: 1,
		}
		if policy == IDShared {
			h.ID = sharedID
		} else {
			h.ID = f.ID
		}
		msgs = append(msgs, encodeMessage(h, []frame.Frame{f}))
	}
	return msgs, nil
}

// EncodeSetupSequence builds a single atomic cyclic task bundling all
// frames as one ordered sequence under the given identifier. Only that
// identifier can later cancel the sequence; the bundled frames' own IDs
// are not independently addressable for deletion.
func EncodeSetupSequence(id uint32, frames []frame.Frame, p CyclicParams, fd bool) ([]byte, error) {
	if err := checkFrames(frames, fd); err != nil {
		return nil, err
	}
	if len(frames) > MaxSequenceFrames {
		return nil, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, len(frames), MaxSequenceFrames)
	}

	h := Header{
		Opcode:  OpTxSetup,
		Flags:   layoutFlags(fd) | FlagSetTimer | FlagStartTimer,
		Count:   p.Count,
		Ival1:   p.Ival1,
		Ival2:   p.Ival2,
		ID:      id,
		NFrames: uint32(len(frames)),
	}
	return encodeMessage(h, frames), nil
}

// EncodeDelete builds a zero-frame delete message for the task keyed by
// (id, direction). No local check is made that id owns a task; deleting
// an absent or non-owning identifier has collaborator-defined effect.
func EncodeDelete(id uint32, dir Direction, fd bool) ([]byte, error) {
	op := OpTxDelete
	if dir == DirectionRx {
		op = OpRxDelete
	}
	h := Header{
		Opcode: op,
		Flags:  layoutFlags(fd),
		ID:     id,
	}
	return encodeMessage(h, nil), nil
}

// EncodeRxFilterID builds a receive filter that notifies on every
// reception of id regardless of payload content. A non-zero timeout
// additionally reports the identifier going absent for that long.
func EncodeRxFilterID(id uint32, timeout Timeval, fd bool) ([]byte, error) {
	h := Header{
		Opcode: OpRxSetup,
		Flags:  layoutFlags(fd) | FlagRxFilterID,
		ID:     id,
	}
	if !timeout.IsZero() {
		h.Flags |= FlagSetTimer
		h.Ival1 = timeout
	}
	return encodeMessage(h, nil), nil
}

// EncodeRxFilterMask builds a receive filter that notifies only when
// payload bits selected by the mask change. Mask bits of 1 mark the
// relevant positions. A non-zero timeout additionally reports the
// identifier going absent for that long.
func EncodeRxFilterMask(id uint32, mask frame.Frame, timeout Timeval, fd bool) ([]byte, error) {
	if err := checkFrames([]frame.Frame{mask}, fd); err != nil {
		return nil, err
	}

	h := Header{
		Opcode:  OpRxSetup,
		Flags:   layoutFlags(fd),
		ID:      id,
		NFrames: 1,
	}
	if !timeout.IsZero() {
		h.Flags |= FlagSetTimer
		h.Ival1 = timeout
	}
	return encodeMessage(h, []frame.Frame{mask}), nil
}

// EncodeEvent builds the message a broadcast manager emits for an event:
// one of the two event opcodes with exactly one attached frame. Intended
// for loopback tests and collaborator simulation; a client never sends
// such a message itself.
func EncodeEvent(op Opcode, id uint32, f frame.Frame) ([]byte, error) {
	if !op.IsEvent() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedOpcode, op)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	fd := f.Flavor == frame.FlavorFD
	h := Header{
		Opcode:  op,
		Flags:   layoutFlags(fd),
		ID:      id,
		NFrames: 1,
	}
	return encodeMessage(h, []frame.Frame{f}), nil
}

// Decode decodes a receive-path message: exactly one of the two legal
// event sizes, exactly one attached frame, and an opcode the remote side
// may emit unsolicited (RX_CHANGED or RX_TIMEOUT). Any violation is
// fatal for the receive loop.
func Decode(data []byte) (Header, frame.Frame, error) {
	var fd bool
	switch len(data) {
	case EventSizeClassic:
		fd = false
	case EventSizeFD:
		fd = true
	default:
		return Header{}, frame.Frame{}, fmt.Errorf("%w: %d bytes", ErrUnexpectedSize, len(data))
	}

	h := parseHeader(data)
	if !h.Opcode.IsEvent() {
		return Header{}, frame.Frame{}, fmt.Errorf("%w: %s", ErrUnexpectedOpcode, h.Opcode)
	}
	if fd != h.Flags.Has(FlagFDFrame) {
		return Header{}, frame.Frame{}, fmt.Errorf("%w: layout flag disagrees with %d bytes",
			ErrUnexpectedSize, len(data))
	}

	f, err := parseFrame(data[HeadSize:], fd)
	if err != nil {
		return Header{}, frame.Frame{}, err
	}
	return h, f, nil
}

// PeekHeader reads just the header of a message without touching the
// frame cells. Useful for logging outbound traffic that the caller
// already validated.
func PeekHeader(data []byte) (Header, error) {
	if len(data) < HeadSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrUnexpectedSize, len(data))
	}
	return parseHeader(data), nil
}

// DecodeMessage decodes any structurally valid message: header plus the
// frame cells its flag-selected layout and NFrames field promise. Unlike
// Decode it accepts every opcode; use it for loopback tests and traffic
// inspection, not for the receive loop.
func DecodeMessage(data []byte) (Header, []frame.Frame, error) {
	if len(data) < HeadSize {
		return Header{}, nil, fmt.Errorf("%w: %d bytes", ErrUnexpectedSize, len(data))
	}

	h := parseHeader(data)
	size := h.frameSize()
	rest := len(data) - HeadSize
	if rest%size != 0 || rest/size != int(h.NFrames) {
		return Header{}, nil, fmt.Errorf("%w: %d trailing bytes for %d frames of %d",
			ErrUnexpectedSize, rest, h.NFrames, size)
	}

	fd := h.Flags.Has(FlagFDFrame)
	frames := make([]frame.Frame, 0, h.NFrames)
	for i := 0; i < int(h.NFrames); i++ {
		f, err := parseFrame(data[HeadSize+i*size:], fd)
		if err != nil {
			return Header{}, nil, err
		}
		frames = append(frames, f)
	}
	return h, frames, nil
}
