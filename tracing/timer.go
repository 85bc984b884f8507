package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/instrument/probing"
)

// A Timer tracks one invocation of an instrumented callable. It is created
// at call entry, optionally records worker-pool queueing timestamps, and
// finalizes at most once with either a result or an error, producing one
// trace event. Implicit timers report their finalized payload to the timer
// that was active when they were created.
type Timer struct {
	id       string
	what     string
	args     []any
	implicit bool
	parent   *Timer

	returnProbe *probing.Probe
	errorProbe  *probing.Probe

	startedAt  time.Time
	enqueuedAt time.Time
	dequeuedAt time.Time

	mu        sync.Mutex
	finalized bool
	children  []Event
}

// StartTimer creates a timer for an invocation that begins now. When
// implicit is true and ctx carries an active timer, the new timer records
// it as parent, and its finalized payload will be appended to the parent's
// sub-tasks. The probes receive the return and error events of the
// invocation; either may be nil.
func StartTimer(
	ctx context.Context,
	what string,
	args []any,
	implicit bool,
	returnProbe *probing.Probe,
	errorProbe *probing.Probe,
) *Timer {
	if what == "" {
		panic("timer what must not be empty")
	}

	t := &Timer{
		id:          xid.New().String(),
		what:        what,
		args:        args,
		implicit:    implicit,
		returnProbe: returnProbe,
		errorProbe:  errorProbe,
		startedAt:   time.Now(),
	}

	if implicit {
		t.parent = TimerFromContext(ctx)
	}

	return t
}

// ID returns the id assigned to the timer at creation.
func (t *Timer) ID() string {
	return t.id
}

// What returns the logical name of the invocation.
func (t *Timer) What() string {
	return t.what
}

// ParentID returns the id of the timer this one nests under, or an empty
// string for a root timer.
func (t *Timer) ParentID() string {
	if t.parent == nil {
		return ""
	}

	return t.parent.id
}

// MarkEnqueued records that the invocation was handed to a worker pool
// rather than run inline.
func (t *Timer) MarkEnqueued() {
	t.mu.Lock()
	t.enqueuedAt = time.Now()
	t.mu.Unlock()
}

// MarkDequeued records that a pool worker began executing the invocation.
// A mark may race a timeout finalization on another goroutine; the lock
// keeps the timestamps consistent with the event snapshot.
func (t *Timer) MarkDequeued() {
	t.mu.Lock()
	t.dequeuedAt = time.Now()
	t.mu.Unlock()
}

// Finalized reports whether the timer has settled.
func (t *Timer) Finalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.finalized
}

// FinalizeReturn settles the timer with a successful result. Only the
// first finalization of a timer takes effect; a finalization racing a
// timeout or a double-settling completion primitive is ignored.
func (t *Timer) FinalizeReturn(result any) {
	t.finalize(KindReturn, result, nil)
}

// FinalizeError settles the timer with a failure.
func (t *Timer) FinalizeError(err error) {
	if err == nil {
		panic("finalizing a timer with a nil error")
	}

	t.finalize(KindError, nil, err)
}

func (t *Timer) finalize(kind Kind, result any, err error) {
	now := time.Now()

	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()
		return
	}
	t.finalized = true

	event := t.buildEvent(kind, now, result, err)
	t.mu.Unlock()

	if t.parent != nil {
		t.parent.recordSubTask(withoutResult(event))
	}

	t.emit(event)
}

// buildEvent must be called with t.mu held.
func (t *Timer) buildEvent(
	kind Kind,
	now time.Time,
	result any,
	err error,
) Event {
	event := Event{
		ID:       t.id,
		ParentID: t.ParentID(),
		Kind:     kind,
		What:     t.what,
		Time:     now,
		Args:     t.args,
		Duration: now.Sub(t.startedAt),
		Result:   result,
		Err:      err,
		SubTasks: append([]Event(nil), t.children...),
	}

	if !t.enqueuedAt.IsZero() && !t.dequeuedAt.IsZero() {
		event.EnqueuedDuration = t.dequeuedAt.Sub(t.enqueuedAt)
	}

	return event
}

func withoutResult(event Event) Event {
	event.Result = nil
	return event
}

func (t *Timer) emit(event Event) {
	probe := t.returnProbe
	if event.Kind == KindError {
		probe = t.errorProbe
	}

	if probe == nil || !probe.IsEnabled() {
		return
	}

	probe.Publish(event)
}

// recordSubTask appends a finalized child payload. Children may finalize
// concurrently on different pool workers, so the append is serialized.
// Appending after the parent has finalized is harmless: the parent's event
// was built from a snapshot.
func (t *Timer) recordSubTask(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.children = append(t.children, event)
}

// NumSubTasks returns the number of child payloads recorded so far.
func (t *Timer) NumSubTasks() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.children)
}
