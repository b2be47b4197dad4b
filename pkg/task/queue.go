package task

import (
	"errors"
	"fmt"

	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// Queue errors.
var (
	// ErrQueueFull indicates the operation queue cannot accept more
	// requests right now.
	ErrQueueFull = errors.New("operation queue is full")

	// ErrUnknownOp indicates a request kind the manager cannot process.
	ErrUnknownOp = errors.New("unknown operation kind")
)

// OpKind identifies one of the queueable operation families.
type OpKind uint8

const (
	// OpSend transmits each frame once.
	OpSend OpKind = 0

	// OpSetupCyclic installs one independent cyclic task per frame.
	OpSetupCyclic OpKind = 1

	// OpSetupSequence installs one atomic multi-frame cyclic task.
	OpSetupSequence OpKind = 2

	// OpDeleteTx removes a cyclic transmission task.
	OpDeleteTx OpKind = 3

	// OpDeleteRx removes a receive filter.
	OpDeleteRx OpKind = 4

	// OpFilterID installs an ID-only receive filter.
	OpFilterID OpKind = 5

	// OpFilterMask installs a payload-mask receive filter. The mask
	// rides as the request's single frame.
	OpFilterMask OpKind = 6
)

// String returns the operation kind name.
func (k OpKind) String() string {
	switch k {
	case OpSend:
		return "SEND"
	case OpSetupCyclic:
		return "SETUP"
	case OpSetupSequence:
		return "SETUP_SEQUENCE"
	case OpDeleteTx:
		return "DELETE_TX"
	case OpDeleteRx:
		return "DELETE_RX"
	case OpFilterID:
		return "FILTER_RX_ID"
	case OpFilterMask:
		return "FILTER_RX_MASK"
	default:
		return "UNKNOWN"
	}
}

// Request is one queued operation, produced by an external collaborator
// and consumed by the Loop.
type Request struct {
	// Kind selects the operation family.
	Kind OpKind

	// ID is the shared or owning identifier: the sequence owner for
	// OpSetupSequence, the target for deletes and filters, and the
	// shared header ID when Policy is IDShared.
	ID uint32

	// Policy selects per-frame or shared header IDs for OpSend and
	// OpSetupCyclic.
	Policy wire.IDPolicy

	// Frames carries the frames of the operation. For OpFilterMask it
	// holds exactly the mask frame.
	Frames []frame.Frame

	// Params carries the cyclic schedule(s) for setup operations:
	// one element for all frames, or one per frame. For filter
	// operations the first element's Ival1 is the absence timeout.
	Params []wire.CyclicParams

	// FD selects the FD message layout.
	FD bool

	// Announce sets the announce-on-update flag for OpSetupCyclic.
	Announce bool
}

// timeout returns the absence timeout a filter request carries.
func (r Request) timeout() wire.Timeval {
	if len(r.Params) == 0 {
		return wire.Timeval{}
	}
	return r.Params[0].Ival1
}

// Queue is the external operation queue the Loop drains. Pop must not
// block: it returns false immediately when no request is pending.
type Queue interface {
	Pop() (Request, bool)
}

// ChanQueue is a bounded, channel-backed Queue for hosts that produce
// requests from other goroutines.
type ChanQueue struct {
	ch chan Request
}

// NewChanQueue creates a queue holding up to capacity pending requests.
func NewChanQueue(capacity int) *ChanQueue {
	return &ChanQueue{ch: make(chan Request, capacity)}
}

// Push enqueues a request without blocking.
func (q *ChanQueue) Push(req Request) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pop dequeues the oldest pending request without blocking.
func (q *ChanQueue) Pop() (Request, bool) {
	select {
	case req := <-q.ch:
		return req, true
	default:
		return Request{}, false
	}
}

// Compile-time interface satisfaction check.
var _ Queue = (*ChanQueue)(nil)

// Process executes one queued request.
func (m *Manager) Process(req Request) error {
	switch req.Kind {
	case OpSend:
		return m.Send(req.Frames, req.Policy, req.ID, req.FD)
	case OpSetupCyclic:
		return m.SetupCyclic(req.Frames, req.Params, req.Policy, req.ID, req.FD, req.Announce)
	case OpSetupSequence:
		params := wire.CyclicParams{}
		if len(req.Params) > 0 {
			params = req.Params[0]
		}
		return m.SetupSequence(req.ID, req.Frames, params, req.FD)
	case OpDeleteTx:
		return m.DeleteTx(req.ID, req.FD)
	case OpDeleteRx:
		return m.DeleteRx(req.ID, req.FD)
	case OpFilterID:
		return m.InstallFilterID(req.ID, req.timeout(), req.FD)
	case OpFilterMask:
		if len(req.Frames) != 1 {
			return fmt.Errorf("%w: mask filter needs exactly one frame, got %d",
				wire.ErrNoFrames, len(req.Frames))
		}
		return m.InstallFilterMask(req.ID, req.Frames[0], req.timeout(), req.FD)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownOp, req.Kind)
	}
}
