package task

import (
	"fmt"
	"time"

	"github.com/canbcm/bcm-go/pkg/channel"
	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/log"
	"github.com/canbcm/bcm-go/pkg/wire"
)

// Manager drives broadcast-manager operations over one channel.
// It holds no task state; the remote broadcast manager does.
type Manager struct {
	ch     channel.Channel
	logger log.Logger
}

// NewManager creates a manager for the given channel.
// Pass nil as logger to disable logging.
func NewManager(ch channel.Channel, logger log.Logger) *Manager {
	return &Manager{
		ch:     ch,
		logger: log.OrNoop(logger),
	}
}

// Send transmits each frame once, one message per frame, in order.
// The identifier policy selects per-frame or shared header IDs.
func (m *Manager) Send(frames []frame.Frame, policy wire.IDPolicy, sharedID uint32, fd bool) error {
	msgs, err := wire.EncodeSend(frames, policy, sharedID, fd)
	if err != nil {
		return err
	}
	return m.sendAll(msgs)
}

// SetupCyclic installs one independent cyclic task per frame. params is
// either one element applied to all frames or one element per frame.
// Reusing an identifier updates the existing task in place.
func (m *Manager) SetupCyclic(frames []frame.Frame, params []wire.CyclicParams, policy wire.IDPolicy, sharedID uint32, fd, announce bool) error {
	msgs, err := wire.EncodeSetupPerFrame(frames, params, policy, sharedID, fd, announce)
	if err != nil {
		return err
	}
	return m.sendAll(msgs)
}

// SetupSequence installs a single atomic cyclic task emitting all frames
// as one ordered sequence under id. Only id cancels the sequence later;
// the bundled frames' own identifiers are not addressable for deletion.
func (m *Manager) SetupSequence(id uint32, frames []frame.Frame, p wire.CyclicParams, fd bool) error {
	msg, err := wire.EncodeSetupSequence(id, frames, p, fd)
	if err != nil {
		return err
	}
	return m.sendAll([][]byte{msg})
}

// DeleteTx removes the cyclic transmission task keyed by id.
func (m *Manager) DeleteTx(id uint32, fd bool) error {
	return m.delete(id, wire.DirectionTx, fd)
}

// DeleteRx removes the receive filter keyed by id.
func (m *Manager) DeleteRx(id uint32, fd bool) error {
	return m.delete(id, wire.DirectionRx, fd)
}

func (m *Manager) delete(id uint32, dir wire.Direction, fd bool) error {
	msg, err := wire.EncodeDelete(id, dir, fd)
	if err != nil {
		return err
	}
	return m.sendAll([][]byte{msg})
}

// InstallFilterID installs a receive filter that notifies on every
// reception of id regardless of payload. A non-zero timeout also
// reports the identifier going absent.
func (m *Manager) InstallFilterID(id uint32, timeout wire.Timeval, fd bool) error {
	msg, err := wire.EncodeRxFilterID(id, timeout, fd)
	if err != nil {
		return err
	}
	return m.sendAll([][]byte{msg})
}

// InstallFilterMask installs a receive filter that notifies only when
// the payload bits selected by mask change. A non-zero timeout also
// reports the identifier going absent.
func (m *Manager) InstallFilterMask(id uint32, mask frame.Frame, timeout wire.Timeval, fd bool) error {
	msg, err := wire.EncodeRxFilterMask(id, mask, timeout, fd)
	if err != nil {
		return err
	}
	return m.sendAll([][]byte{msg})
}

// sendAll hands the encoded buffers to the channel in order. The first
// failure aborts the operation; remaining buffers are not sent and
// nothing is retried.
func (m *Manager) sendAll(msgs [][]byte) error {
	for _, msg := range msgs {
		h, err := wire.PeekHeader(msg)
		if err != nil {
			return err
		}

		if err := m.ch.Send(msg); err != nil {
			m.logger.Log(log.Event{
				Timestamp: time.Now(),
				ChannelID: m.ch.ID(),
				Direction: log.DirectionOut,
				Category:  log.CategoryError,
				Error: &log.ErrorEvent{
					Message: err.Error(),
					Context: h.Opcode.String(),
				},
			})
			return fmt.Errorf("%s for id 0x%X failed: %w", h.Opcode, h.ID, err)
		}

		m.logger.Log(log.Event{
			Timestamp: time.Now(),
			ChannelID: m.ch.ID(),
			Direction: log.DirectionOut,
			Category:  log.CategoryMessage,
			Message: &log.MessageEvent{
				Opcode:     uint32(h.Opcode),
				OpcodeName: h.Opcode.String(),
				ID:         h.ID,
				Flags:      uint32(h.Flags),
				NFrames:    h.NFrames,
				Size:       len(msg),
			},
		})
	}
	return nil
}
