package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/canbcm/bcm-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByOpcode    map[string]int
	Identifiers       map[uint32]*IdentifierStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// IdentifierStats holds statistics for a single task identifier.
type IdentifierStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Bytes     int
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByOpcode:    make(map[string]int),
		Identifiers:       make(map[uint32]*IdentifierStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.Message != nil {
			name := event.Message.OpcodeName
			if name == "" {
				name = fmt.Sprintf("OPCODE_%d", event.Message.Opcode)
			}
			stats.EventsByOpcode[name]++

			id, ok := stats.Identifiers[event.Message.ID]
			if !ok {
				id = &IdentifierStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
				stats.Identifiers[event.Message.ID] = id
			}
			id.Events++
			id.Bytes += event.Message.Size
			if event.Timestamp.After(id.LastSeen) {
				id.LastSeen = event.Timestamp
			}
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== BCM Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.EventsByOpcode) > 0 {
		fmt.Fprintln(w, "Messages by Opcode:")
		names := make([]string, 0, len(stats.EventsByOpcode))
		for name := range stats.EventsByOpcode {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-16s %d\n", name+":", stats.EventsByOpcode[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Identifiers: %d\n", len(stats.Identifiers))
	if len(stats.Identifiers) > 0 {
		ids := make([]uint32, 0, len(stats.Identifiers))
		for id := range stats.Identifiers {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintln(w)
		for _, id := range ids {
			is := stats.Identifiers[id]
			duration := is.LastSeen.Sub(is.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [0x%03X] %d messages, %d bytes, span %s\n",
				id, is.Events, is.Bytes, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
