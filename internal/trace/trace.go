// Package trace decodes the page-access trace written by the benchmark binary.
//
// The file is a headerless sequence of 16-byte little-endian records: a
// float64 timestamp in seconds followed by a uint64 whose low 56 bits hold the
// page id and whose high 8 bits hold the action code.
package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
)

const (
	RecordSize = 16

	idBits = 56
	idMask = 1<<idBits - 1

	// TempIDThreshold separates database pages from temporary pages
	TempIDThreshold = 2_000_000
)

var ErrMalformed = errors.New("malformed trace")

// Action is the cache event kind. The codes are the tracer's CacheAction
// enum (Evict = 1, Fault = 2, Ref = 3), so a record with action 1 is an
// eviction and one with action 2 a fault.
type Action uint8

const (
	Evict Action = 1
	Fault Action = 2
	Ref   Action = 3
)

func (a Action) String() string {
	switch a {
	case Evict:
		return "evict"
	case Fault:
		return "fault"
	case Ref:
		return "ref"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

type Event struct {
	Timestamp float64
	ID        uint64
	Action    Action
}

// Pack is the inverse of the record decoding.
func (e Event) Pack() [RecordSize]byte {
	var record [RecordSize]byte
	binary.LittleEndian.PutUint64(record[:8], math.Float64bits(e.Timestamp))
	binary.LittleEndian.PutUint64(record[8:], e.ID&idMask|uint64(e.Action)<<idBits)
	return record
}

func unpack(record []byte) Event {
	packed := binary.LittleEndian.Uint64(record[8:])
	return Event{
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(record[:8])),
		ID:        packed & idMask,
		Action:    Action(packed >> idBits),
	}
}

// Decode reads records until EOF. A trailing partial record is ErrMalformed.
func Decode(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		reader := bufio.NewReaderSize(r, 1<<16)
		var record [RecordSize]byte
		for offset := int64(0); ; offset += RecordSize {
			n, err := io.ReadFull(reader, record[:])
			if err == io.EOF {
				return
			} else if err == io.ErrUnexpectedEOF {
				yield(Event{}, fmt.Errorf("%w: %v trailing bytes at offset %v", ErrMalformed, n, offset))
				return
			} else if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(unpack(record[:]), nil) {
				return
			}
		}
	}
}

// File is a validated trace file. Every call to Events reads it from the
// start, so the sequence can be consumed any number of times.
type File struct {
	Path string
	Size int64
}

func Open(path string) (*File, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	if stat.Size()%RecordSize != 0 {
		return nil, fmt.Errorf("%w: %v has %v bytes, not a multiple of %v", ErrMalformed, path, stat.Size(), RecordSize)
	}
	return &File{Path: path, Size: stat.Size()}, nil
}

// Len is the number of records in the file.
func (f *File) Len() int { return int(f.Size / RecordSize) }

func (f *File) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		file, err := os.Open(f.Path)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer file.Close()
		for event, err := range Decode(file) {
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll decodes the whole file at path.
func ReadAll(path string) ([]Event, error) {
	file, err := Open(path)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, file.Len())
	for event, err := range file.Events() {
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Write encodes events to w.
func Write(w io.Writer, events []Event) error {
	buffered := bufio.NewWriter(w)
	for _, event := range events {
		record := event.Pack()
		if _, err := buffered.Write(record[:]); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// Persistent keeps the events of pages with ids below limit.
func Persistent(events []Event, limit uint64) []Event {
	var result []Event
	for _, event := range events {
		if event.ID < limit {
			result = append(result, event)
		}
	}
	return result
}

// Split groups events by action, keeping their order.
func Split(events []Event) map[Action][]Event {
	result := make(map[Action][]Event)
	for _, event := range events {
		result[event.Action] = append(result[event.Action], event)
	}
	return result
}
