package task

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/event"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// DefaultIdleSleep is how long the loop pauses after an iteration in
// which nothing was received and no request was pending.
const DefaultIdleSleep = time.Millisecond

// Loop drives one channel single-threadedly. Each iteration drains the
// external operation queue, then issues one non-blocking receive and
// routes the decoded message through the dispatcher.
type Loop struct {
	ch         channel.Channel
	manager    *Manager
	queue      Queue
	dispatcher *event.Dispatcher
	logger     log.Logger
	idleSleep  time.Duration

	stopped atomic.Bool
}

// NewLoop creates a loop over the given channel. queue may be nil for
// receive-only hosts. Pass nil as logger to disable logging.
func NewLoop(ch channel.Channel, queue Queue, sink event.Sink, logger log.Logger) *Loop {
	return &Loop{
		ch:         ch,
		manager:    NewManager(ch, logger),
		queue:      queue,
		dispatcher: event.NewDispatcher(sink, logger, ch.ID()),
		logger:     log.OrNoop(logger),
		idleSleep:  DefaultIdleSleep,
	}
}

// Manager returns the loop's manager, for issuing operations directly
// from the loop's own goroutine (e.g. initial filter installation).
func (l *Loop) Manager() *Manager {
	return l.manager
}

// SetIdleSleep overrides the idle pause. Zero disables sleeping, which
// turns the loop into a busy poll.
func (l *Loop) SetIdleSleep(d time.Duration) {
	l.idleSleep = d
}

// Stop requests the loop to exit. It is safe to call from any goroutine
// and takes effect at the next iteration boundary.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Run executes the loop until Stop is called or a fatal error occurs.
// A would-block receive is the normal empty outcome; every other
// receive, decode or operation error terminates the loop. Nothing is
// retried.
func (l *Loop) Run() error {
	l.logState("", "running", "")

	buf := make([]byte, wire.EventSizeFD)
	for !l.stopped.Load() {
		busy, err := l.iterate(buf)
		if err != nil {
			l.logState("running", "stopped", err.Error())
			return err
		}
		if !busy && l.idleSleep > 0 {
			time.Sleep(l.idleSleep)
		}
	}

	l.logState("running", "stopped", "stop requested")
	return nil
}

// iterate performs one loop turn. busy reports whether anything was
// processed, so the caller can skip the idle pause.
func (l *Loop) iterate(buf []byte) (busy bool, err error) {
	if l.queue != nil {
		for {
			req, ok := l.queue.Pop()
			if !ok {
				break
			}
			busy = true
			if err := l.manager.Process(req); err != nil {
				return busy, fmt.Errorf("processing %s request: %w", req.Kind, err)
			}
		}
	}

	n, err := l.ch.Receive(buf)
	if err != nil {
		if errors.Is(err, channel.ErrWouldBlock) {
			return busy, nil
		}
		return busy, fmt.Errorf("receive failed: %w", err)
	}

	h, f, err := wire.Decode(buf[:n])
	if err != nil {
		l.logger.Log(log.Event{
			Timestamp: time.Now(),
			ChannelID: l.ch.ID(),
			Direction: log.DirectionIn,
			Category:  log.CategoryError,
			Error: &log.ErrorEvent{
				Message: err.Error(),
				Context: "decode",
			},
		})
		return true, fmt.Errorf("decoding inbound message: %w", err)
	}

	if err := l.dispatcher.Dispatch(h, f); err != nil {
		return true, fmt.Errorf("dispatching %s: %w", h.Opcode, err)
	}
	return true, nil
}

func (l *Loop) logState(oldState, newState, reason string) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		ChannelID: l.ch.ID(),
		Category:  log.CategoryState,
		State: &log.StateEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
