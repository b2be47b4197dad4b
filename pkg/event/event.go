package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// ErrNotAnEvent indicates a header whose opcode is not one of the two
// event opcodes. The wire codec rejects such messages before they reach
// the classifier, so seeing this error means the decode step was skipped.
var ErrNotAnEvent = errors.New("opcode is not an event")

// Kind is the event kind.
type Kind uint8

const (
	// KindContentChanged reports a first reception or a payload change
	// within the filter's mask.
	KindContentChanged Kind = 0

	// KindTimeout reports that a monitored cyclic frame went absent.
	KindTimeout Kind = 1
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindContentChanged:
		return "CONTENT_CHANGED"
	case KindTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Event is a fully decoded inbound notification.
type Event struct {
	// Kind distinguishes content changes from timeouts.
	Kind Kind

	// ID is the identifier the filter was installed under.
	ID uint32

	// Frame is the frame attached to the notification. For timeouts the
	// payload reflects the last seen content and may be empty.
	Frame frame.Frame

	// Timestamp is when the event was decoded.
	Timestamp time.Time
}

// Sink receives decoded events. Implementations must not block; a sink
// that cannot accept synchronously queues the event itself.
type Sink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// OnEvent calls the function.
func (f SinkFunc) OnEvent(e Event) { f(e) }

// Classify maps a decoded header and frame to an Event. It is a pure
// function; the only error case is an opcode the receive-path decoder
// would already have rejected.
func Classify(h wire.Header, f frame.Frame) (Event, error) {
	var kind Kind
	switch h.Opcode {
	case wire.OpRxChanged:
		kind = KindContentChanged
	case wire.OpRxTimeout:
		kind = KindTimeout
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrNotAnEvent, h.Opcode)
	}

	return Event{
		Kind:      kind,
		ID:        h.ID,
		Frame:     f,
		Timestamp: time.Now(),
	}, nil
}

// Dispatcher classifies decoded messages and hands the resulting events
// to the sink, logging each dispatch.
type Dispatcher struct {
	sink      Sink
	logger    log.Logger
	channelID string
}

// NewDispatcher creates a dispatcher for the given sink.
// Pass nil as logger to disable logging.
func NewDispatcher(sink Sink, logger log.Logger, channelID string) *Dispatcher {
	return &Dispatcher{
		sink:      sink,
		logger:    log.OrNoop(logger),
		channelID: channelID,
	}
}

// Dispatch classifies and forwards one decoded message.
func (d *Dispatcher) Dispatch(h wire.Header, f frame.Frame) error {
	ev, err := Classify(h, f)
	if err != nil {
		return err
	}

	size := wire.EventSizeClassic
	if f.Flavor == frame.FlavorFD {
		size = wire.EventSizeFD
	}

	d.logger.Log(log.Event{
		Timestamp: ev.Timestamp,
		ChannelID: d.channelID,
		Direction: log.DirectionIn,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			Opcode:     uint32(h.Opcode),
			OpcodeName: h.Opcode.String(),
			ID:         h.ID,
			Flags:      uint32(h.Flags),
			NFrames:    h.NFrames,
			Size:       size,
		},
	})

	d.sink.OnEvent(ev)
	return nil
}
