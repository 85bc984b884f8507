package pool

import "runtime"

// A Builder can build worker pools.
type Builder struct {
	numWorkers    int
	queueCapacity int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numWorkers:    runtime.GOMAXPROCS(0),
		queueCapacity: 4096,
	}
}

// WithNumWorkers sets the number of worker goroutines.
func (b Builder) WithNumWorkers(n int) Builder {
	b.numWorkers = n
	return b
}

// WithQueueCapacity sets the number of tasks that can wait in the queue
// before Submit blocks.
func (b Builder) WithQueueCapacity(n int) Builder {
	b.queueCapacity = n
	return b
}

// Build builds a pool and starts its workers.
func (b Builder) Build(name string) Pool {
	if b.numWorkers <= 0 {
		panic("a pool requires at least one worker")
	}

	p := &workerPool{
		name:       name,
		numWorkers: b.numWorkers,
		taskChan:   make(chan *taskHandle, b.queueCapacity),
	}

	p.run()

	return p
}
