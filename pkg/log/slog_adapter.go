package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see bus traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Messages and state changes go
// out at Debug level, errors at Error level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("channel_id", event.ChannelID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Interface != "" {
		attrs = append(attrs, slog.String("interface", event.Interface))
	}

	level := slog.LevelDebug

	switch {
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("opcode", event.Message.OpcodeName),
			slog.String("id", hexID(event.Message.ID)),
			slog.Int("size", event.Message.Size),
		)
		if event.Message.NFrames > 0 {
			attrs = append(attrs, slog.Uint64("nframes", uint64(event.Message.NFrames)))
		}
	case event.State != nil:
		attrs = append(attrs,
			slog.String("old_state", event.State.OldState),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Error != nil:
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "bcm", attrs...)
}

// hexID formats a task identifier the way CAN tooling prints it.
func hexID(id uint32) string {
	return fmt.Sprintf("0x%03X", id)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
