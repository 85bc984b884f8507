package tracing

import (
	"encoding/json"
	"time"
)

// Kind distinguishes the three trace events an instrumented call can emit.
type Kind string

// Enumeration of trace event kinds.
const (
	KindEnter  Kind = "enter"
	KindReturn Kind = "return"
	KindError  Kind = "error"
)

// An Event is one trace record of an instrumented invocation.
type Event struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Kind     Kind   `json:"kind"`
	What     string `json:"what"`

	Time time.Time `json:"time"`
	Args []any     `json:"args"`

	// Duration is the wall time between the call entry and its
	// finalization. Only set on return and error events.
	Duration time.Duration `json:"duration"`

	// EnqueuedDuration is the time the call spent waiting in a worker-pool
	// queue. It is zero for calls that ran inline.
	EnqueuedDuration time.Duration `json:"enqueued_duration"`

	Result any   `json:"result,omitempty"`
	Err    error `json:"-"`

	// SubTasks holds the finalized payloads of the implicit instrumented
	// calls made during this invocation, in completion order.
	SubTasks []Event `json:"sub_tasks,omitempty"`
}

// ErrorMessage returns the error text of the event, or an empty string for
// successful events.
func (e Event) ErrorMessage() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

// MarshalJSON serializes the event with the error as its message text, as
// error values do not marshal on their own.
func (e Event) MarshalJSON() ([]byte, error) {
	type plainEvent Event

	return json.Marshal(struct {
		plainEvent
		Error string `json:"error,omitempty"`
	}{
		plainEvent: plainEvent(e),
		Error:      e.ErrorMessage(),
	})
}

// An EventFilter selects interesting events. If this function returns
// true, the event is considered useful.
type EventFilter func(e Event) bool
