package converter

import (
	"time"
)

// Status is the terminal disposition of a conversion request.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusUnsupported Status = "unsupported"
)

// IsTerminal reports whether no further events follow this status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusUnsupported:
		return true
	}
	return false
}

// EventKind distinguishes the events a Converter emits.
type EventKind string

const (
	// EventStarted fires when a queued request is dispatched.
	EventStarted EventKind = "started"
	// EventProgress is part of the sink contract; the converter itself
	// cannot observe tool progress and never emits it.
	EventProgress EventKind = "progress"
	// EventFinished carries the terminal Status of a dispatched or cancelled request.
	EventFinished EventKind = "finished"
	// EventError reports a rejected submission. No Finished event follows it.
	EventError EventKind = "error"
	// EventAllFinished fires once the queue, running jobs and output checks are all empty.
	EventAllFinished EventKind = "all_finished"
)

// Event is a single notification from the Converter.
type Event struct {
	Kind       EventKind
	JobID      string
	InputPath  string
	OutputPath string
	Status     Status
	Percent    int
	Err        error
	// Duration is set on Finished events of dispatched jobs.
	Duration time.Duration
	Time     time.Time
}

// Sink receives converter events. Emit is called from the converter's
// event loop one event at a time; it must not block for long. Emit may call
// Submit, Cancel and CancelAll, but not Close.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
