package bcm_test

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/event"
	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/task"
	"github.com/canbcm/bcm-go/pkg/wire"
)

type eventCollector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *eventCollector) OnEvent(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) snapshot() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

// TestE2E_CyclicLifecycle drives a full task lifecycle through the
// loop: install a cyclic task and a receive filter from the queue,
// receive a content-change notification, then tear both down.
func TestE2E_CyclicLifecycle(t *testing.T) {
	lb := channel.NewLoopback()
	queue := task.NewChanQueue(16)
	sink := &eventCollector{}

	loop := task.NewLoop(lb, queue, sink, nil)
	loop.SetIdleSleep(0)

	push := func(req task.Request) {
		t.Helper()
		if err := queue.Push(req); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	push(task.Request{
		Kind:   task.OpSetupCyclic,
		Frames: []frame.Frame{frame.MustNew(0x100, frame.FlavorClassic, []byte{0x01, 0x02})},
		Params: []wire.CyclicParams{{Count: 3, Ival1: wire.TimevalFromDuration(10 * time.Millisecond), Ival2: wire.TimevalFromDuration(time.Second)}},
	})
	push(task.Request{Kind: task.OpFilterID, ID: 0x222})

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	// Wait for both queued operations to reach the channel.
	deadline := time.After(2 * time.Second)
	for len(lb.Sent()) < 2 {
		select {
		case <-deadline:
			t.Fatal("queued operations were not sent")
		case <-time.After(time.Millisecond):
		}
	}

	// The remote side reports a content change for the filtered ID.
	notification, err := wire.EncodeEvent(wire.OpRxChanged, 0x222,
		frame.MustNew(0x222, frame.FlavorClassic, []byte{0xCA, 0xFE}))
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	lb.QueueInbound(notification)

	deadline = time.After(2 * time.Second)
	for len(sink.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("notification was not dispatched")
		case <-time.After(time.Millisecond):
		}
	}

	push(task.Request{Kind: task.OpDeleteTx, ID: 0x100})
	push(task.Request{Kind: task.OpDeleteRx, ID: 0x222})

	deadline = time.After(2 * time.Second)
	for len(lb.Sent()) < 4 {
		select {
		case <-deadline:
			t.Fatal("teardown operations were not sent")
		case <-time.After(time.Millisecond):
		}
	}

	loop.Stop()
	if err := <-done; err != nil {
		t.Fatalf("loop failed: %v", err)
	}

	// Verify the wire traffic in order.
	sent := lb.Sent()
	wantOps := []wire.Opcode{wire.OpTxSetup, wire.OpRxSetup, wire.OpTxDelete, wire.OpRxDelete}
	if len(sent) != len(wantOps) {
		t.Fatalf("sent %d messages, want %d", len(sent), len(wantOps))
	}
	for i, msg := range sent {
		h, _, err := wire.DecodeMessage(msg)
		if err != nil {
			t.Fatalf("message %d does not decode: %v", i, err)
		}
		if h.Opcode != wantOps[i] {
			t.Errorf("message %d opcode = %s, want %s", i, h.Opcode, wantOps[i])
		}
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(events))
	}
	if events[0].Kind != event.KindContentChanged || events[0].ID != 0x222 {
		t.Errorf("event = %+v, want content change for 0x222", events[0])
	}
}

// TestE2E_CaptureRoundTrip captures a session to a CBOR file and reads
// it back through the filtered reader.
func TestE2E_CaptureRoundTrip(t *testing.T) {
	capturePath := filepath.Join(t.TempDir(), "session.cbor")

	capture, err := log.NewFileLogger(capturePath)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	lb := channel.NewLoopback()
	manager := task.NewManager(lb, capture)

	if err := manager.Send([]frame.Frame{
		frame.MustNew(0x123, frame.FlavorClassic, []byte{0xDE, 0xAD, 0xBE, 0xEF}),
	}, wire.IDPerFrame, 0, false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := manager.SetupSequence(0x700, []frame.Frame{
		frame.MustNew(0x101, frame.FlavorClassic, []byte{0x01}),
		frame.MustNew(0x102, frame.FlavorClassic, []byte{0x02}),
	}, wire.CyclicParams{Ival2: wire.TimevalFromDuration(100 * time.Millisecond)}, false); err != nil {
		t.Fatalf("SetupSequence failed: %v", err)
	}
	if err := capture.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// All traffic comes back out of the capture file.
	reader, err := log.NewReader(capturePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var captured []log.Event
	for {
		e, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		captured = append(captured, e)
	}

	if len(captured) != 2 {
		t.Fatalf("captured %d events, want 2", len(captured))
	}
	if captured[0].Message == nil || captured[0].Message.OpcodeName != "TX_SEND" {
		t.Errorf("first capture = %+v, want TX_SEND", captured[0])
	}
	if captured[1].Message == nil || captured[1].Message.NFrames != 2 {
		t.Errorf("second capture = %+v, want a two-frame setup", captured[1])
	}

	// The identifier filter finds only the sequence traffic.
	seqID := uint32(0x700)
	filtered, err := log.NewFilteredReader(capturePath, log.Filter{ID: &seqID})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer filtered.Close()

	e, err := filtered.Next()
	if err != nil {
		t.Fatalf("filtered Next failed: %v", err)
	}
	if e.Message.ID != seqID {
		t.Errorf("filtered id = 0x%X, want 0x700", e.Message.ID)
	}
	if _, err := filtered.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("want EOF after the single match, got %v", err)
	}
}

// TestE2E_TimeoutNotification installs a filter with an absence
// timeout and verifies the timeout notification round-trips into a
// classified event.
func TestE2E_TimeoutNotification(t *testing.T) {
	lb := channel.NewLoopback()
	sink := &eventCollector{}
	loop := task.NewLoop(lb, nil, sink, nil)
	loop.SetIdleSleep(0)

	timeout := wire.TimevalFromDuration(500 * time.Millisecond)
	if err := loop.Manager().InstallFilterID(0x333, timeout, false); err != nil {
		t.Fatalf("InstallFilterID failed: %v", err)
	}

	sent := lb.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	h, _, err := wire.DecodeMessage(sent[0])
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if !h.Flags.Has(wire.FlagSetTimer) || h.Ival1 != timeout {
		t.Errorf("filter setup = %+v, want SETTIMER with ival1 %+v", h, timeout)
	}

	notification, err := wire.EncodeEvent(wire.OpRxTimeout, 0x333,
		frame.MustNew(0x333, frame.FlavorClassic, nil))
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	lb.QueueInbound(notification)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	deadline := time.After(2 * time.Second)
	for len(sink.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout notification was not dispatched")
		case <-time.After(time.Millisecond):
		}
	}

	loop.Stop()
	if err := <-done; err != nil {
		t.Fatalf("loop failed: %v", err)
	}

	events := sink.snapshot()
	if events[0].Kind != event.KindTimeout || events[0].ID != 0x333 {
		t.Errorf("event = %+v, want timeout for 0x333", events[0])
	}
}
