package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/canbcm/bcm-go/pkg/frame"
)

func classicFrame(t *testing.T, id uint32, data ...byte) frame.Frame {
	t.Helper()
	f, err := frame.New(id, frame.FlavorClassic, data)
	if err != nil {
		t.Fatalf("frame.New failed: %v", err)
	}
	return f
}

func fdFrame(t *testing.T, id uint32, n int) frame.Frame {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	f, err := frame.New(id, frame.FlavorFD, data)
	if err != nil {
		t.Fatalf("frame.New failed: %v", err)
	}
	return f
}

func TestEncodeSendSingleClassic(t *testing.T) {
	f := classicFrame(t, 0x123, 0xDE, 0xAD, 0xBE, 0xEF)

	msgs, err := EncodeSend([]frame.Frame{f}, IDPerFrame, 0, false)
	if err != nil {
		t.Fatalf("EncodeSend failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(msgs[0]) != EventSizeClassic {
		t.Fatalf("message size = %d, want %d", len(msgs[0]), EventSizeClassic)
	}

	h, frames, err := DecodeMessage(msgs[0])
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if h.Opcode != OpTxSend {
		t.Errorf("opcode = %s, want TX_SEND", h.Opcode)
	}
	if h.NFrames != 1 {
		t.Errorf("nframes = %d, want 1", h.NFrames)
	}
	if h.ID != 0x123 {
		t.Errorf("id = 0x%X, want 0x123", h.ID)
	}
	if !bytes.Equal(frames[0].Data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("payload = %x", frames[0].Data)
	}
}

func TestEncodeSendOneMessagePerFrame(t *testing.T) {
	f1 := classicFrame(t, 0x123, 0xDE, 0xAD, 0xBE, 0xEF)
	f2 := classicFrame(t, 0x345, 0xC0, 0xFF, 0xEE)

	msgs, err := EncodeSend([]frame.Frame{f1, f2}, IDPerFrame, 0, false)
	if err != nil {
		t.Fatalf("EncodeSend failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	wantIDs := []uint32{0x123, 0x345}
	for i, msg := range msgs {
		h, _, err := DecodeMessage(msg)
		if err != nil {
			t.Fatalf("DecodeMessage(%d) failed: %v", i, err)
		}
		if h.ID != wantIDs[i] {
			t.Errorf("message %d id = 0x%X, want 0x%X", i, h.ID, wantIDs[i])
		}
	}
}

func TestEncodeSendIDPolicies(t *testing.T) {
	frames := []frame.Frame{
		classicFrame(t, 0x100, 0x01),
		classicFrame(t, 0x200, 0x02),
	}

	tests := []struct {
		name     string
		policy   IDPolicy
		sharedID uint32
		wantIDs  []uint32
	}{
		{name: "per frame", policy: IDPerFrame, wantIDs: []uint32{0x100, 0x200}},
		{name: "shared", policy: IDShared, sharedID: 0x777, wantIDs: []uint32{0x777, 0x777}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := EncodeSend(frames, tt.policy, tt.sharedID, false)
			if err != nil {
				t.Fatalf("EncodeSend failed: %v", err)
			}
			for i, msg := range msgs {
				h, _, err := DecodeMessage(msg)
				if err != nil {
					t.Fatalf("DecodeMessage failed: %v", err)
				}
				if h.ID != tt.wantIDs[i] {
					t.Errorf("message %d id = 0x%X, want 0x%X", i, h.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestEncodeSendRejectsFDFrameInClassicMessage(t *testing.T) {
	f := fdFrame(t, 0x567, 16)

	_, err := EncodeSend([]frame.Frame{f}, IDPerFrame, 0, false)
	if !errors.Is(err, ErrFlavorMismatch) {
		t.Fatalf("error = %v, want ErrFlavorMismatch", err)
	}
}

func TestEncodeSetupPerFrameIndependence(t *testing.T) {
	f1 := classicFrame(t, 0x100, 0x01)
	f2 := classicFrame(t, 0x200, 0x02)
	params := []CyclicParams{
		{Count: 10, Ival1: Timeval{Usec: 500}, Ival2: Timeval{Sec: 1}},
		{Count: 5, Ival1: Timeval{Usec: 500}, Ival2: Timeval{Sec: 2}},
	}

	msgs, err := EncodeSetupPerFrame([]frame.Frame{f1, f2}, params, IDPerFrame, 0, false, false)
	if err != nil {
		t.Fatalf("EncodeSetupPerFrame failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	wantIDs := []uint32{0x100, 0x200}
	wantCounts := []uint32{10, 5}
	for i, msg := range msgs {
		h, frames, err := DecodeMessage(msg)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		if h.Opcode != OpTxSetup {
			t.Errorf("opcode = %s, want TX_SETUP", h.Opcode)
		}
		if h.ID != wantIDs[i] {
			t.Errorf("message %d id = 0x%X, want 0x%X", i, h.ID, wantIDs[i])
		}
		if h.Count != wantCounts[i] {
			t.Errorf("message %d count = %d, want %d", i, h.Count, wantCounts[i])
		}
		if !h.Flags.Has(FlagSetTimer | FlagStartTimer) {
			t.Errorf("message %d missing timer flags: %#x", i, h.Flags)
		}
		if len(frames) != 1 {
			t.Errorf("message %d carries %d frames, want 1", i, len(frames))
		}
	}
}

func TestEncodeSetupPerFrameScalarParams(t *testing.T) {
	frames := []frame.Frame{
		classicFrame(t, 0x100, 0x01),
		classicFrame(t, 0x200, 0x02),
	}
	params := []CyclicParams{{Count: 3, Ival2: Timeval{Sec: 1}}}

	msgs, err := EncodeSetupPerFrame(frames, params, IDPerFrame, 0, false, true)
	if err != nil {
		t.Fatalf("EncodeSetupPerFrame failed: %v", err)
	}
	for i, msg := range msgs {
		h, _, err := DecodeMessage(msg)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		if h.Count != 3 {
			t.Errorf("message %d count = %d, want 3", i, h.Count)
		}
		if !h.Flags.Has(FlagTxAnnounce) {
			t.Errorf("message %d missing announce flag", i)
		}
	}
}

func TestEncodeSetupPerFrameParamArity(t *testing.T) {
	frames := []frame.Frame{
		classicFrame(t, 0x100, 0x01),
		classicFrame(t, 0x200, 0x02),
		classicFrame(t, 0x300, 0x03),
	}
	params := []CyclicParams{{Count: 1}, {Count: 2}}

	_, err := EncodeSetupPerFrame(frames, params, IDPerFrame, 0, false, false)
	if !errors.Is(err, ErrParamArity) {
		t.Fatalf("error = %v, want ErrParamArity", err)
	}
}

func TestEncodeSetupSequenceRoundTrip(t *testing.T) {
	f1 := classicFrame(t, 0x123, 0xDE, 0xAD, 0xBE, 0xEF)
	f2 := classicFrame(t, 0x345, 0xC0, 0xFF, 0xEE)
	p := CyclicParams{Count: 10, Ival1: Timeval{Usec: 500}, Ival2: Timeval{Sec: 1}}

	msg, err := EncodeSetupSequence(0x123, []frame.Frame{f1, f2}, p, false)
	if err != nil {
		t.Fatalf("EncodeSetupSequence failed: %v", err)
	}
	if want := HeadSize + 2*FrameSizeClassic; len(msg) != want {
		t.Fatalf("message size = %d, want %d", len(msg), want)
	}

	h, frames, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if h.Opcode != OpTxSetup {
		t.Errorf("opcode = %s, want TX_SETUP", h.Opcode)
	}
	if h.ID != 0x123 {
		t.Errorf("id = 0x%X, want 0x123", h.ID)
	}
	if h.Count != 10 {
		t.Errorf("count = %d, want 10", h.Count)
	}
	if h.Ival1 != p.Ival1 || h.Ival2 != p.Ival2 {
		t.Errorf("intervals = %+v/%+v, want %+v/%+v", h.Ival1, h.Ival2, p.Ival1, p.Ival2)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].ID != f1.ID || !bytes.Equal(frames[0].Data, f1.Data) {
		t.Errorf("frame 0 = %+v, want %+v", frames[0], f1)
	}
	if frames[1].ID != f2.ID || !bytes.Equal(frames[1].Data, f2.Data) {
		t.Errorf("frame 1 = %+v, want %+v", frames[1], f2)
	}
}

func TestEncodeSetupSequenceFD(t *testing.T) {
	f1 := fdFrame(t, 0x567, 16)
	f2 := fdFrame(t, 0x789, 12)

	msg, err := EncodeSetupSequence(0x567, []frame.Frame{f1, f2}, CyclicParams{Count: 10}, true)
	if err != nil {
		t.Fatalf("EncodeSetupSequence failed: %v", err)
	}
	if want := HeadSize + 2*FrameSizeFD; len(msg) != want {
		t.Fatalf("message size = %d, want %d", len(msg), want)
	}

	h, frames, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if !h.Flags.Has(FlagFDFrame) {
		t.Errorf("missing FD flag: %#x", h.Flags)
	}
	if len(frames[0].Data) != 16 || len(frames[1].Data) != 12 {
		t.Errorf("payload lengths = %d/%d, want 16/12", len(frames[0].Data), len(frames[1].Data))
	}
}

func TestEncodeSetupSequenceTooLong(t *testing.T) {
	frames := make([]frame.Frame, MaxSequenceFrames+1)
	for i := range frames {
		frames[i] = classicFrame(t, uint32(i+1), byte(i))
	}

	_, err := EncodeSetupSequence(1, frames, CyclicParams{}, false)
	if !errors.Is(err, ErrSequenceTooLong) {
		t.Fatalf("error = %v, want ErrSequenceTooLong", err)
	}
}

// The owning identifier of a sequence is the header ID. Deleting by a
// bundled frame's ID must still be constructible: the codec never
// rejects it locally, the remote effect is collaborator-defined.
func TestSequenceDeleteByNonOwningID(t *testing.T) {
	f1 := classicFrame(t, 0x123, 0x01)
	f2 := classicFrame(t, 0x345, 0x02)

	if _, err := EncodeSetupSequence(0x123, []frame.Frame{f1, f2}, CyclicParams{Count: 1}, false); err != nil {
		t.Fatalf("EncodeSetupSequence failed: %v", err)
	}

	owning, err := EncodeDelete(0x123, DirectionTx, false)
	if err != nil {
		t.Fatalf("EncodeDelete(owning) failed: %v", err)
	}
	nonOwning, err := EncodeDelete(f2.ID, DirectionTx, false)
	if err != nil {
		t.Fatalf("EncodeDelete(non-owning) failed: %v", err)
	}

	for _, msg := range [][]byte{owning, nonOwning} {
		h, frames, err := DecodeMessage(msg)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		if h.Opcode != OpTxDelete {
			t.Errorf("opcode = %s, want TX_DELETE", h.Opcode)
		}
		if len(frames) != 0 {
			t.Errorf("delete carries %d frames, want 0", len(frames))
		}
	}
}

func TestEncodeDelete(t *testing.T) {
	tests := []struct {
		name string
		dir  Direction
		want Opcode
	}{
		{name: "tx", dir: DirectionTx, want: OpTxDelete},
		{name: "rx", dir: DirectionRx, want: OpRxDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := EncodeDelete(0x222, tt.dir, false)
			if err != nil {
				t.Fatalf("EncodeDelete failed: %v", err)
			}
			if len(msg) != HeadSize {
				t.Fatalf("message size = %d, want %d", len(msg), HeadSize)
			}
			h, _, err := DecodeMessage(msg)
			if err != nil {
				t.Fatalf("DecodeMessage failed: %v", err)
			}
			if h.Opcode != tt.want {
				t.Errorf("opcode = %s, want %s", h.Opcode, tt.want)
			}
			if h.ID != 0x222 {
				t.Errorf("id = 0x%X, want 0x222", h.ID)
			}
		})
	}
}

func TestEncodeRxFilterID(t *testing.T) {
	msg, err := EncodeRxFilterID(0x222, Timeval{}, false)
	if err != nil {
		t.Fatalf("EncodeRxFilterID failed: %v", err)
	}
	if len(msg) != HeadSize {
		t.Fatalf("message size = %d, want %d", len(msg), HeadSize)
	}

	h, _, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if h.Opcode != OpRxSetup {
		t.Errorf("opcode = %s, want RX_SETUP", h.Opcode)
	}
	if !h.Flags.Has(FlagRxFilterID) {
		t.Errorf("missing RX_FILTER_ID flag: %#x", h.Flags)
	}
	if h.Flags.Has(FlagSetTimer) {
		t.Errorf("no timeout requested, SETTIMER must stay clear: %#x", h.Flags)
	}
	if h.NFrames != 0 {
		t.Errorf("nframes = %d, want 0", h.NFrames)
	}
}

func TestEncodeRxFilterIDWithTimeout(t *testing.T) {
	timeout := TimevalFromDuration(500 * time.Millisecond)

	msg, err := EncodeRxFilterID(0x222, timeout, false)
	if err != nil {
		t.Fatalf("EncodeRxFilterID failed: %v", err)
	}

	h, _, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if !h.Flags.Has(FlagSetTimer) {
		t.Errorf("missing SETTIMER flag: %#x", h.Flags)
	}
	if h.Ival1 != timeout {
		t.Errorf("ival1 = %+v, want %+v", h.Ival1, timeout)
	}
}

func TestEncodeRxFilterMask(t *testing.T) {
	mask := classicFrame(t, 0, 0xFF)

	msg, err := EncodeRxFilterMask(0x444, mask, Timeval{}, false)
	if err != nil {
		t.Fatalf("EncodeRxFilterMask failed: %v", err)
	}

	h, frames, err := DecodeMessage(msg)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if h.Opcode != OpRxSetup {
		t.Errorf("opcode = %s, want RX_SETUP", h.Opcode)
	}
	if h.Flags.Has(FlagRxFilterID) {
		t.Errorf("mask filter must not set RX_FILTER_ID")
	}
	if h.ID != 0x444 {
		t.Errorf("id = 0x%X, want 0x444", h.ID)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0].Data, []byte{0xFF}) {
		t.Errorf("mask frame = %+v", frames)
	}
}

func TestDecodeRejectsUnexpectedSize(t *testing.T) {
	sizes := []int{
		0,
		HeadSize,
		HeadSize + 3,
		EventSizeClassic - 1,
		EventSizeClassic + 1,
		EventSizeFD + 8,
	}

	for _, size := range sizes {
		if _, _, err := Decode(make([]byte, size)); !errors.Is(err, ErrUnexpectedSize) {
			t.Errorf("Decode(%d bytes) error = %v, want ErrUnexpectedSize", size, err)
		}
	}
}

func TestDecodeRejectsUnexpectedOpcode(t *testing.T) {
	// Decode is the enforcement point for receive-path opcodes: nothing
	// but RX_CHANGED and RX_TIMEOUT may come off the wire unsolicited.
	for _, op := range []Opcode{OpTxSetup, OpTxDelete, OpTxSend, OpRxSetup, OpTxStatus, Opcode(99)} {
		buf := make([]byte, EventSizeClassic)
		putHeader(buf, Header{Opcode: op, ID: 0x123, NFrames: 1})

		_, _, err := Decode(buf)
		if !errors.Is(err, ErrUnexpectedOpcode) {
			t.Errorf("Decode(%s) error = %v, want ErrUnexpectedOpcode", op, err)
		}
	}
}

func TestDecodeEventRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		opcode Opcode
		fd     bool
		frame  func(t *testing.T) frame.Frame
	}{
		{
			name:   "classic content change",
			opcode: OpRxChanged,
			frame:  func(t *testing.T) frame.Frame { return classicFrame(t, 0x222, 0xDE, 0xAD) },
		},
		{
			name:   "classic timeout",
			opcode: OpRxTimeout,
			frame:  func(t *testing.T) frame.Frame { return classicFrame(t, 0x222) },
		},
		{
			name:   "fd content change",
			opcode: OpRxChanged,
			fd:     true,
			frame:  func(t *testing.T) frame.Frame { return fdFrame(t, 0x333, 48) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.frame(t)
			h := Header{
				Opcode:  tt.opcode,
				Flags:   layoutFlags(tt.fd),
				ID:      f.ID,
				NFrames: 1,
			}
			buf := encodeMessage(h, []frame.Frame{f})

			got, gotFrame, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Opcode != tt.opcode {
				t.Errorf("opcode = %s, want %s", got.Opcode, tt.opcode)
			}
			if got.ID != f.ID {
				t.Errorf("id = 0x%X, want 0x%X", got.ID, f.ID)
			}
			if gotFrame.Flavor != f.Flavor {
				t.Errorf("flavor = %s, want %s", gotFrame.Flavor, f.Flavor)
			}
			if !bytes.Equal(gotFrame.Data, f.Data) {
				t.Errorf("payload = %x, want %x", gotFrame.Data, f.Data)
			}
		})
	}
}

func TestDecodeRejectsOversizedLengthByte(t *testing.T) {
	f := classicFrame(t, 0x123, 0x01)
	h := Header{Opcode: OpRxChanged, ID: 0x123, NFrames: 1}
	buf := encodeMessage(h, []frame.Frame{f})

	// Corrupt the frame length byte beyond the classic bound.
	buf[HeadSize+offFrameLen] = 9

	if _, _, err := Decode(buf); !errors.Is(err, ErrUnexpectedSize) {
		t.Fatalf("error = %v, want ErrUnexpectedSize", err)
	}
}

func TestDecodeMessageNFramesMismatch(t *testing.T) {
	f := classicFrame(t, 0x123, 0x01)
	h := Header{Opcode: OpTxSetup, NFrames: 2}
	buf := encodeMessage(h, []frame.Frame{f}) // one cell, header claims two

	if _, _, err := DecodeMessage(buf); !errors.Is(err, ErrUnexpectedSize) {
		t.Fatalf("error = %v, want ErrUnexpectedSize", err)
	}
}

func TestEncodeEventRejectsClientOpcodes(t *testing.T) {
	f := classicFrame(t, 0x123, 0x01)

	for _, op := range []Opcode{OpTxSend, OpTxSetup, OpRxSetup, OpTxDelete} {
		if _, err := EncodeEvent(op, 0x123, f); !errors.Is(err, ErrUnexpectedOpcode) {
			t.Errorf("%s: error = %v, want ErrUnexpectedOpcode", op, err)
		}
	}

	buf, err := EncodeEvent(OpRxTimeout, 0x123, f)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	h, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if h.Opcode != OpRxTimeout || h.ID != 0x123 {
		t.Errorf("header = %+v, want RX_TIMEOUT for 0x123", h)
	}
}

func TestTimevalConversion(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want Timeval
	}{
		{name: "zero", d: 0, want: Timeval{}},
		{name: "microseconds", d: 500 * time.Microsecond, want: Timeval{Usec: 500}},
		{name: "seconds", d: 1 * time.Second, want: Timeval{Sec: 1}},
		{name: "mixed", d: 2*time.Second + 250*time.Millisecond, want: Timeval{Sec: 2, Usec: 250000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimevalFromDuration(tt.d)
			if got != tt.want {
				t.Errorf("TimevalFromDuration = %+v, want %+v", got, tt.want)
			}
			if got.Duration() != tt.d {
				t.Errorf("Duration = %v, want %v", got.Duration(), tt.d)
			}
		})
	}
}
