package tracing

import (
	"context"
	"time"

	"github.com/sarchlab/instrument/future"
	"github.com/sarchlab/instrument/pool"
	"github.com/sarchlab/instrument/probing"
)

// A Dispatcher wraps a callable with trace instrumentation. Each Call
// emits an enter event (when subscribed), tracks the invocation with a
// timer, optionally defers the body onto a worker pool, optionally races
// it against a timeout, and settles the returned future with the body's
// result or failure.
type Dispatcher struct {
	name     string
	body     Body
	executor pool.Pool
	timeout  TimeoutFunc
	implicit bool
	table    *probing.Table

	enterProbe  *probing.Probe
	returnProbe *probing.Probe
	errorProbe  *probing.Probe
}

// Name returns the logical name of the instrumented callable.
func (d *Dispatcher) Name() string {
	return d.name
}

// Call invokes the instrumented callable. The returned future settles
// exactly once with the body's result or failure; pooled invocations never
// block the calling goroutine.
//
// A body that panics while running inline has the panic re-raised to the
// caller unchanged, after the failure has been recorded on the timer and
// the future.
func (d *Dispatcher) Call(ctx context.Context, args ...any) *future.Future {
	timer := StartTimer(
		ctx, d.name, args, d.implicit, d.returnProbe, d.errorProbe)

	d.emitEnter(timer, args)

	f := future.New()

	if d.executor == nil {
		d.callInline(ctx, timer, f, args)
		return f
	}

	d.callPooled(ctx, timer, f, args)

	return f
}

// emitEnter publishes the enter event on the calling goroutine, before any
// hand-off, so it always precedes the matching return or error event. The
// payload is only constructed when someone listens.
func (d *Dispatcher) emitEnter(timer *Timer, args []any) {
	if !d.enterProbe.IsEnabled() {
		return
	}

	d.enterProbe.Publish(Event{
		ID:       timer.ID(),
		ParentID: timer.ParentID(),
		Kind:     KindEnter,
		What:     d.name,
		Time:     time.Now(),
		Args:     args,
	})
}

func (d *Dispatcher) callInline(
	ctx context.Context,
	timer *Timer,
	f *future.Future,
	args []any,
) {
	d.armTimeout(timer, f, args, nil)

	defer func() {
		if r := recover(); r != nil {
			err := PanicError{Value: r}
			timer.FinalizeError(err)
			f.Fail(err)
			panic(r)
		}
	}()

	result, err := d.body(ContextWithTimer(ctx, timer), args...)
	d.settle(timer, f, result, err)
}

func (d *Dispatcher) callPooled(
	ctx context.Context,
	timer *Timer,
	f *future.Future,
	args []any,
) {
	timer.MarkEnqueued()

	handle := d.executor.Submit(
		ContextWithTimer(ctx, timer),
		func(taskCtx context.Context) {
			timer.MarkDequeued()
			d.runPooledBody(taskCtx, timer, f, args)
		},
	)

	d.armTimeout(timer, f, args, handle)
}

// runPooledBody executes the body on a pool worker. A panic here cannot be
// re-raised to the caller, so it travels through the future's error
// channel instead.
func (d *Dispatcher) runPooledBody(
	ctx context.Context,
	timer *Timer,
	f *future.Future,
	args []any,
) {
	defer func() {
		if r := recover(); r != nil {
			err := PanicError{Value: r}
			timer.FinalizeError(err)
			f.Fail(err)
		}
	}()

	result, err := d.body(ctx, args...)
	d.settle(timer, f, result, err)
}

// settle finalizes the timer and resolves the future from the body's
// outcome. When the body returned a future of its own, the invocation is
// considered settled only once that future settles.
func (d *Dispatcher) settle(
	timer *Timer,
	f *future.Future,
	result any,
	err error,
) {
	if err != nil {
		timer.FinalizeError(err)
		f.Fail(err)
		return
	}

	if inner, ok := result.(*future.Future); ok {
		inner.OnSuccess(func(value any) {
			timer.FinalizeReturn(value)
			f.Resolve(value)
		})
		inner.OnError(func(innerErr error) {
			timer.FinalizeError(innerErr)
			f.Fail(innerErr)
		})

		return
	}

	timer.FinalizeReturn(result)
	f.Resolve(result)
}

// armTimeout races the invocation against its configured timeout. First to
// finalize wins: the timer's idempotent finalize and the future's
// at-most-once resolution discard the loser. The handle is nil for inline
// invocations, which can only report the timeout, not interrupt the work.
func (d *Dispatcher) armTimeout(
	timer *Timer,
	f *future.Future,
	args []any,
	handle pool.Handle,
) {
	if d.timeout == nil {
		return
	}

	duration, ok := d.timeout(args)
	if !ok {
		return
	}

	watcher := time.AfterFunc(duration, func() {
		timer.FinalizeError(ErrTimeout)

		if handle != nil {
			d.executor.Cancel(handle)
		}

		f.Fail(ErrTimeout)
	})

	go func() {
		<-f.Done()
		watcher.Stop()
	}()
}

// Close releases the three probes the dispatcher acquired at build time.
func (d *Dispatcher) Close() {
	d.table.ReleaseProbe(d.name + ":enter")
	d.table.ReleaseProbe(d.name + ":return")
	d.table.ReleaseProbe(d.name + ":error")
}
