package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/canbcm/bcm-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	ChannelID string
	Interface string
	ID        string
	TimeStart string
	TimeEnd   string
	Direction string
	Category  string
}

// RunFilter filters the capture file and writes matching events to a
// new file.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter := log.Filter{
		ChannelID: opts.ChannelID,
		Interface: opts.Interface,
	}

	if opts.ID != "" {
		id, err := strconv.ParseUint(opts.ID, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid identifier: %w", err)
		}
		u := uint32(id)
		filter.ID = &u
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Direction != "" {
		d, err := ParseDirectionFlag(opts.Direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, opts.Output)
	return nil
}
