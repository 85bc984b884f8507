package tracing

import (
	"sync"

	"github.com/sarchlab/instrument/probing"
)

// CollectingTracer keeps the events published on a probe in memory, in
// arrival order. It backs the monitoring endpoints and is handy in tests.
type CollectingTracer struct {
	lock   sync.Mutex
	events []Event
}

// NewCollectingTracer creates a new CollectingTracer.
func NewCollectingTracer() *CollectingTracer {
	return &CollectingTracer{}
}

// Func records one published event.
func (t *CollectingTracer) Func(ctx probing.ProbeCtx) {
	event, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	t.lock.Lock()
	t.events = append(t.events, event)
	t.lock.Unlock()
}

// Events returns a copy of the recorded events.
func (t *CollectingTracer) Events() []Event {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]Event(nil), t.events...)
}

// Reset discards the recorded events.
func (t *CollectingTracer) Reset() {
	t.lock.Lock()
	t.events = nil
	t.lock.Unlock()
}
