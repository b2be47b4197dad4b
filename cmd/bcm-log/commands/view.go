// Package commands implements the bcm-log CLI commands.
package commands

import (
	"fmt"
	"io"

	"github.com/canbcm/bcm-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Direction *log.Direction
	Category  *log.Category
	ID        *uint32
}

// RunView prints the capture file in human-readable format.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Direction: filter.Direction,
		Category:  filter.Category,
		ID:        filter.ID,
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	chanID := shortenChannelID(event.ChannelID)

	var typeLabel string
	switch {
	case event.Message != nil:
		typeLabel = event.Message.OpcodeName
		if typeLabel == "" {
			typeLabel = fmt.Sprintf("OPCODE_%d", event.Message.Opcode)
		}
	case event.State != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [chan:%s] %-4s %s %s\n", ts, chanID, event.Direction, event.Category, typeLabel)

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.State != nil:
		formatStateDetails(w, event.State)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenChannelID returns the first 8 characters of the channel ID.
func shortenChannelID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  ID: 0x%03X\n", msg.ID)
	fmt.Fprintf(w, "  Size: %d bytes", msg.Size)
	if msg.NFrames > 0 {
		fmt.Fprintf(w, "  Frames: %d", msg.NFrames)
	}
	fmt.Fprintln(w)
	if msg.Flags != 0 {
		fmt.Fprintf(w, "  Flags: %#x\n", msg.Flags)
	}
}

func formatStateDetails(w io.Writer, state *log.StateEvent) {
	if state.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", state.OldState, state.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", state.NewState)
	}
	if state.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", state.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEvent) {
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// ParseDirectionFlag parses a -direction flag value.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch s {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "none":
		return log.DirectionNone, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want in, out, none)", s)
	}
}

// ParseCategoryFlag parses a -category flag value.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch s {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (want message, state, error)", s)
	}
}
