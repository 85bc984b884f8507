package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/instrument/probing"
)

// AverageTimeTracer accumulates the average duration of the invocations
// published on a probe. If a filter is set, only the events it accepts
// contribute.
type AverageTimeTracer struct {
	filter EventFilter

	lock        sync.Mutex
	averageTime time.Duration
	eventCount  uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer.
func NewAverageTimeTracer(filter EventFilter) *AverageTimeTracer {
	t := &AverageTimeTracer{
		filter: filter,
	}

	return t
}

// AverageTime returns the average duration of the recorded invocations.
func (t *AverageTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// TotalCount returns the number of recorded invocations.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.eventCount
}

// Func records one published event.
func (t *AverageTimeTracer) Func(ctx probing.ProbeCtx) {
	event, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	if t.filter != nil && !t.filter(event) {
		return
	}

	t.lock.Lock()
	total := float64(t.averageTime)*float64(t.eventCount) +
		float64(event.Duration)
	t.eventCount++
	t.averageTime = time.Duration(total / float64(t.eventCount))
	t.lock.Unlock()
}
