// Package future provides an asynchronous result placeholder that resolves
// at most once and delivers attached continuations exactly once.
package future

import (
	"context"
	"sync"
)

// A Future is a placeholder for a value or an error that will be available
// later. It resolves at most once; later resolution attempts are ignored.
// Continuations can be attached both before and after resolution and each
// continuation runs exactly once.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     any
	err       error
	onSuccess []func(value any)
	onError   []func(err error)
}

// New creates a pending Future.
func New() *Future {
	f := &Future{
		done: make(chan struct{}),
	}

	return f
}

// Resolve completes the Future with a value. If the Future has already
// settled, the call is a no-op.
func (f *Future) Resolve(value any) {
	f.settle(value, nil)
}

// Fail completes the Future with an error. If the Future has already
// settled, the call is a no-op.
func (f *Future) Fail(err error) {
	if err == nil {
		panic("failing a future requires a non-nil error")
	}

	f.settle(nil, err)
}

func (f *Future) settle(value any, err error) {
	f.mu.Lock()

	if f.resolved {
		f.mu.Unlock()
		return
	}

	f.resolved = true
	f.value = value
	f.err = err
	successCallbacks := f.onSuccess
	errorCallbacks := f.onError
	f.onSuccess = nil
	f.onError = nil

	close(f.done)
	f.mu.Unlock()

	if err == nil {
		for _, callback := range successCallbacks {
			callback(value)
		}
	} else {
		for _, callback := range errorCallbacks {
			callback(err)
		}
	}
}

// OnSuccess attaches a continuation invoked with the value if the Future
// resolves successfully. When attached after a successful resolution, the
// continuation runs immediately on the calling goroutine.
func (f *Future) OnSuccess(callback func(value any)) *Future {
	f.mu.Lock()

	if !f.resolved {
		f.onSuccess = append(f.onSuccess, callback)
		f.mu.Unlock()
		return f
	}

	err := f.err
	value := f.value
	f.mu.Unlock()

	if err == nil {
		callback(value)
	}

	return f
}

// OnError attaches a continuation invoked with the error if the Future
// fails. When attached after a failure, the continuation runs immediately
// on the calling goroutine.
func (f *Future) OnError(callback func(err error)) *Future {
	f.mu.Lock()

	if !f.resolved {
		f.onError = append(f.onError, callback)
		f.mu.Unlock()
		return f
	}

	err := f.err
	f.mu.Unlock()

	if err != nil {
		callback(err)
	}

	return f
}

// Done returns a channel that is closed when the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the Future has settled.
func (f *Future) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.resolved
}

// Result returns the settled value and error. It panics if the Future is
// still pending; use Wait or Done to block first.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.resolved {
		panic("reading the result of a pending future")
	}

	return f.value, f.err
}

// Wait blocks until the Future settles or the context is canceled. On
// cancellation, the context's error is returned and the Future stays
// pending.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
