package tracing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sarchlab/instrument/probing"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter stores finalized trace events in a SQLite database.
// Sub-task payloads are flattened into rows of the same table, linked to
// the enclosing invocation through the parent_id column. Events may be
// published from concurrent finalizations.
type SQLiteTraceWriter struct {
	*sql.DB
	statement *sql.Stmt

	dbName            string
	lock              sync.Mutex
	eventsToWriteToDB []Event
	batchSize         int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. If the path is
// empty, a database file with a generated name is created in the working
// directory.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 100000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// Init establishes a connection to the database and prepares the trace
// table.
func (t *SQLiteTraceWriter) Init() {
	t.createDatabase()
	t.createTable()
	t.prepareStatement()
}

// DBName returns the name of the database file, without the extension.
func (t *SQLiteTraceWriter) DBName() string {
	return t.dbName
}

// Func buffers one published event.
func (t *SQLiteTraceWriter) Func(ctx probing.ProbeCtx) {
	event, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	t.Write(event)
}

// Write buffers an event and its sub-tasks for writing.
func (t *SQLiteTraceWriter) Write(event Event) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.eventsToWriteToDB = append(t.eventsToWriteToDB, event)
	if len(t.eventsToWriteToDB) >= t.batchSize {
		t.flush()
	}
}

// Flush writes all the buffered events to the database.
func (t *SQLiteTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flush()
}

func (t *SQLiteTraceWriter) flush() {
	if len(t.eventsToWriteToDB) == 0 {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, event := range t.eventsToWriteToDB {
		t.insertEvent(event)
	}

	t.eventsToWriteToDB = nil
}

func (t *SQLiteTraceWriter) insertEvent(event Event) {
	args, err := json.Marshal(event.Args)
	if err != nil {
		panic(err)
	}

	_, err = t.statement.Exec(
		event.ID,
		event.ParentID,
		string(event.Kind),
		event.What,
		string(args),
		event.ErrorMessage(),
		float64(event.Time.UnixNano())/1e9,
		event.Duration.Seconds(),
		event.EnqueuedDuration.Seconds(),
	)
	if err != nil {
		panic(err)
	}

	for _, subTask := range event.SubTasks {
		t.insertEvent(subTask)
	}
}

func (t *SQLiteTraceWriter) createDatabase() {
	if t.dbName == "" {
		t.dbName = "instrument_trace_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	t.DB, err = sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}
}

func (t *SQLiteTraceWriter) createTable() {
	t.mustExecute(`
		CREATE TABLE trace (
			id TEXT,
			parent_id TEXT,
			kind TEXT,
			what TEXT,
			args TEXT,
			error TEXT,
			time REAL,
			duration REAL,
			enqueued_duration REAL
		)
	`)
	t.mustExecute("CREATE INDEX trace_id_idx ON trace (id)")
	t.mustExecute("CREATE INDEX trace_parent_id_idx ON trace (parent_id)")
	t.mustExecute("CREATE INDEX trace_what_idx ON trace (what)")
}

func (t *SQLiteTraceWriter) prepareStatement() {
	statement, err := t.Prepare(`
		INSERT INTO trace (
			id, parent_id, kind, what, args, error,
			time, duration, enqueued_duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		panic(err)
	}

	t.statement = statement
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	result, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("%w: %s", err, query))
	}

	return result
}
