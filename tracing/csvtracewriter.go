package tracing

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sarchlab/instrument/probing"
	"github.com/tebeka/atexit"
)

// CSVTraceWriter stores finalized trace events in a CSV file. Sub-task
// payloads are written as their own rows, linked to the enclosing
// invocation through the parent id column. Events may be published from
// concurrent finalizations.
type CSVTraceWriter struct {
	path string
	file *os.File

	lock       sync.Mutex
	events     []Event
	bufferSize int
}

// NewCSVTraceWriter creates a new CSVTraceWriter.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the tracing csv file. If the file already exists, it will
// be overwritten.
func (t *CSVTraceWriter) Init() {
	file, err := os.Create(t.path)
	if err != nil {
		panic(err)
	}
	t.file = file

	fmt.Fprintf(file,
		"ID, ParentID, Kind, What, Args, Error, Time, Duration, EnqueuedDuration\n")

	atexit.Register(func() {
		t.Flush()
		err := t.file.Close()
		if err != nil {
			panic(err)
		}
	})
}

// Func buffers one published event.
func (t *CSVTraceWriter) Func(ctx probing.ProbeCtx) {
	event, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	t.Write(event)
}

// Write buffers an event and its sub-tasks for writing.
func (t *CSVTraceWriter) Write(event Event) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.events = append(t.events, event)
	if len(t.events) >= t.bufferSize {
		t.flush()
	}
}

// Flush writes the buffered events to the CSV file.
func (t *CSVTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flush()
}

func (t *CSVTraceWriter) flush() {
	for _, event := range t.events {
		t.writeEvent(event)
	}

	t.events = nil
}

func (t *CSVTraceWriter) writeEvent(event Event) {
	args, err := json.Marshal(event.Args)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(t.file, "%s, %s, %s, %s, %q, %q, %.10f, %.10f, %.10f\n",
		event.ID,
		event.ParentID,
		event.Kind,
		event.What,
		args,
		event.ErrorMessage(),
		float64(event.Time.UnixNano())/1e9,
		event.Duration.Seconds(),
		event.EnqueuedDuration.Seconds(),
	)

	for _, subTask := range event.SubTasks {
		t.writeEvent(subTask)
	}
}
