// Package pool provides a fixed-size worker pool with best-effort
// cancellation of submitted work.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// A Task is a unit of work executed on a pool worker. The context passed
// in is the one given at submission time, extended with cancellation; a
// task that wants to be interruptible observes ctx.Done().
type Task func(ctx context.Context)

// A Handle identifies a submitted task and allows waiting for it.
type Handle interface {
	// ID returns the id assigned to the task at submission.
	ID() string

	// Done returns a channel that is closed when the task has finished
	// running or was canceled before it started.
	Done() <-chan struct{}
}

// A Pool runs submitted tasks on a fixed set of workers.
type Pool interface {
	// Submit hands a task to the pool. The given context is the one the
	// task runs under; values carried by it cross into the worker
	// goroutine. Submit never runs the task on the calling goroutine.
	Submit(ctx context.Context, task Task) Handle

	// Cancel interrupts a submitted task. A task that has not started is
	// skipped; a running task has its context canceled. Cancellation is
	// best-effort: a task that ignores its context runs to completion.
	Cancel(handle Handle)

	// Stats reports a snapshot of the pool state.
	Stats() Stats

	// Shutdown stops the workers after the queued tasks have drained.
	// Submitting after Shutdown panics.
	Shutdown()
}

// Stats is a snapshot of the runtime state of a pool.
type Stats struct {
	Name       string `json:"name"`
	NumWorkers int    `json:"num_workers"`
	Queued     int    `json:"queued"`
	Active     int    `json:"active"`
	Submitted  uint64 `json:"submitted"`
	Completed  uint64 `json:"completed"`
	Canceled   uint64 `json:"canceled"`
}

type taskHandle struct {
	id     string
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	skipped atomic.Bool
}

func (h *taskHandle) ID() string {
	return h.id
}

func (h *taskHandle) Done() <-chan struct{} {
	return h.done
}

type workerPool struct {
	name       string
	numWorkers int

	taskChan  chan *taskHandle
	waitGroup sync.WaitGroup

	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	canceled  atomic.Uint64
}

func (p *workerPool) run() {
	for i := 0; i < p.numWorkers; i++ {
		p.waitGroup.Add(1)
		go p.worker()
	}
}

func (p *workerPool) worker() {
	defer p.waitGroup.Done()

	for handle := range p.taskChan {
		p.runTask(handle)
	}
}

func (p *workerPool) runTask(handle *taskHandle) {
	defer close(handle.done)
	defer handle.cancel()

	if handle.ctx.Err() != nil {
		handle.skipped.Store(true)
		p.canceled.Add(1)
		return
	}

	p.active.Add(1)
	defer p.active.Add(-1)
	defer p.completed.Add(1)

	handle.task(handle.ctx)
}

func (p *workerPool) Submit(ctx context.Context, task Task) Handle {
	taskCtx, cancel := context.WithCancel(ctx)
	handle := &taskHandle{
		id:     xid.New().String(),
		task:   task,
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.submitted.Add(1)
	p.taskChan <- handle

	return handle
}

func (p *workerPool) Cancel(handle Handle) {
	h, ok := handle.(*taskHandle)
	if !ok {
		panic("handle was not issued by this pool")
	}

	h.cancel()
}

func (p *workerPool) Stats() Stats {
	return Stats{
		Name:       p.name,
		NumWorkers: p.numWorkers,
		Queued:     len(p.taskChan),
		Active:     int(p.active.Load()),
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Canceled:   p.canceled.Load(),
	}
}

func (p *workerPool) Shutdown() {
	close(p.taskChan)
	p.waitGroup.Wait()
}
