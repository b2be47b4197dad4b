package log

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads events back from a capture file written by FileLogger.
type Reader struct {
	file *os.File
	dec  *cbor.Decoder
}

// NewReader opens a capture file for reading.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return &Reader{
		file: file,
		dec:  logDecMode.NewDecoder(file),
	}, nil
}

// Next returns the next event, or io.EOF after the last one.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Filter selects a subset of capture events. Zero-valued fields match
// everything.
type Filter struct {
	// ChannelID matches events from one channel.
	ChannelID string

	// Interface matches events tagged with one bus interface.
	Interface string

	// TimeStart excludes events before this instant.
	TimeStart *time.Time

	// TimeEnd excludes events after this instant.
	TimeEnd *time.Time

	// Direction matches one message flow direction.
	Direction *Direction

	// Category matches one event category.
	Category *Category

	// ID matches wire messages carrying one task identifier.
	ID *uint32
}

// Match reports whether the event passes the filter.
func (f Filter) Match(event Event) bool {
	if f.ChannelID != "" && event.ChannelID != f.ChannelID {
		return false
	}
	if f.Interface != "" && event.Interface != f.Interface {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && event.Timestamp.After(*f.TimeEnd) {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.ID != nil {
		if event.Message == nil || event.Message.ID != *f.ID {
			return false
		}
	}
	return true
}

// FilteredReader reads only the events matching a filter.
type FilteredReader struct {
	reader *Reader
	filter Filter
}

// NewFilteredReader opens a capture file and applies the filter to
// every event handed out.
func NewFilteredReader(path string, filter Filter) (*FilteredReader, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	return &FilteredReader{reader: reader, filter: filter}, nil
}

// Next returns the next matching event, or io.EOF after the last one.
func (r *FilteredReader) Next() (Event, error) {
	for {
		event, err := r.reader.Next()
		if err != nil {
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *FilteredReader) Close() error {
	return r.reader.Close()
}
