// Package speech is the boundary to a streaming speech recognizer.
//
// A Recognizer runs at most one capture at a time. Every event it emits is
// tagged with the id returned by the Start call that began the capture, so
// consumers can tell late events of a finished capture from current ones.
package speech

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrBusy   = errors.New("speech: capture already active")
	ErrClosed = errors.New("speech: recognizer closed")
)

type EventType int

const (
	EventResult EventType = iota
	EventEnd
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventResult:
		return "result"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	}
	return "unknown"
}

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
}

type Event struct {
	Capture      uint64
	Type         EventType
	Final        bool
	Alternatives []Alternative
	Err          error
}

// Transcript returns the top alternative, trimmed.
func (e Event) Transcript() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Alternatives[0].Transcript)
}

type Recognizer interface {
	// Start begins a capture and returns its id.
	Start(ctx context.Context) (uint64, error)
	// Stop asks the active capture to finish. It is best effort: results
	// already in flight may still arrive.
	Stop() error
	// Events is the single event stream, closed by Close.
	Events() <-chan Event
	Close() error
}
