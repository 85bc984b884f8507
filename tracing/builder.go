package tracing

import (
	"context"
	"time"

	"github.com/sarchlab/instrument/pool"
	"github.com/sarchlab/instrument/probing"
)

// A Body is the callable being instrumented. The returned value may itself
// be a *future.Future, in which case the dispatcher waits for it to settle
// before finalizing the invocation's timer.
//
// Bodies that run on a worker pool should observe ctx.Done() if they want
// timeouts to genuinely interrupt them.
type Body func(ctx context.Context, args ...any) (any, error)

// A TimeoutFunc derives a per-invocation timeout from the call arguments.
// Returning false means the invocation has no timeout.
type TimeoutFunc func(args []any) (time.Duration, bool)

type probeSubscription struct {
	subEvent string
	sink     probing.Sink
}

// A Builder can build dispatchers.
type Builder struct {
	executor      pool.Pool
	timeout       TimeoutFunc
	implicit      bool
	table         *probing.Table
	subscriptions []probeSubscription
}

// MakeBuilder creates a builder with default parameters: inline execution,
// no timeout, implicit nesting, and the process-wide probe table.
func MakeBuilder() Builder {
	return Builder{
		implicit: true,
		table:    probing.DefaultTable(),
	}
}

// WithExecutor sets the worker pool that runs the body. Without an
// executor the body runs inline on the calling goroutine.
func (b Builder) WithExecutor(executor pool.Pool) Builder {
	b.executor = executor
	return b
}

// WithTimeout sets the function that derives a timeout from the call
// arguments. Timeouts can genuinely cancel pooled invocations only; an
// inline invocation that times out reports the failure without halting the
// in-flight synchronous work.
func (b Builder) WithTimeout(timeout TimeoutFunc) Builder {
	b.timeout = timeout
	return b
}

// WithImplicit sets whether invocations nest under an active parent timer.
func (b Builder) WithImplicit(implicit bool) Builder {
	b.implicit = implicit
	return b
}

// WithProbeTable sets the probe namespace the dispatcher acquires its
// probes from.
func (b Builder) WithProbeTable(table *probing.Table) Builder {
	b.table = table
	return b
}

// WithProbeSink attaches a sink to one of the derived probes at build
// time. The subEvent must be one of "enter", "return", or "error".
func (b Builder) WithProbeSink(subEvent string, sink probing.Sink) Builder {
	if subEvent != string(KindEnter) &&
		subEvent != string(KindReturn) &&
		subEvent != string(KindError) {
		panic("unknown sub-event " + subEvent)
	}

	b.subscriptions = append(b.subscriptions,
		probeSubscription{subEvent: subEvent, sink: sink})

	return b
}

// Build builds a dispatcher that wraps body. The name identifies the three
// derived probes `name:enter`, `name:return`, and `name:error`; it must
// not be empty.
func (b Builder) Build(name string, body Body) *Dispatcher {
	if name == "" {
		panic("dispatcher name must not be empty")
	}

	if body == nil {
		panic("dispatcher body must not be nil")
	}

	d := &Dispatcher{
		name:     name,
		body:     body,
		executor: b.executor,
		timeout:  b.timeout,
		implicit: b.implicit,
		table:    b.table,

		enterProbe:  b.table.AcquireProbe(name + ":enter"),
		returnProbe: b.table.AcquireProbe(name + ":return"),
		errorProbe:  b.table.AcquireProbe(name + ":error"),
	}

	for _, sub := range b.subscriptions {
		switch sub.subEvent {
		case string(KindEnter):
			d.enterProbe.AcceptSink(sub.sink)
		case string(KindReturn):
			d.returnProbe.AcceptSink(sub.sink)
		case string(KindError):
			d.errorProbe.AcceptSink(sub.sink)
		}
	}

	return d
}
