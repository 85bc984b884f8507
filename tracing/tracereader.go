package tracing

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// EventQuery is used to define the events to be queried. Not all the
// fields have to be set. If a field is empty, the criterion is ignored.
type EventQuery struct {
	// Use ID to select a single event by its id.
	ID string

	// Use ParentID to select all the events nested under an invocation.
	ParentID string

	// Use Kind to select all the events of a kind.
	Kind Kind

	// Use What to select all the events of a named callable.
	What string

	// Enable time range selection.
	EnableTimeRange bool

	// Use StartTime and EndTime to select events finalized in the given
	// range, in unix seconds.
	StartTime, EndTime float64
}

// SQLiteTraceReader reads trace events back from a database written by a
// SQLiteTraceWriter.
type SQLiteTraceReader struct {
	*sql.DB
}

// NewSQLiteTraceReader creates a reader for the given database file.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	return &SQLiteTraceReader{
		DB: db,
	}
}

// ListWhats returns the distinct callable names that appear in the trace.
func (r *SQLiteTraceReader) ListWhats() []string {
	var whats []string

	rows, err := r.Query("SELECT DISTINCT what FROM trace")
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	for rows.Next() {
		var what string
		err := rows.Scan(&what)
		if err != nil {
			panic(err)
		}
		whats = append(whats, what)
	}

	return whats
}

// ListEvents returns the events that match the query, ordered by
// finalization time.
func (r *SQLiteTraceReader) ListEvents(query EventQuery) []Event {
	sqlStr, params := r.prepareEventQueryStr(query)

	rows, err := r.Query(sqlStr, params...)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		events = append(events, r.scanEvent(rows))
	}

	return events
}

func (r *SQLiteTraceReader) scanEvent(rows *sql.Rows) Event {
	var e Event
	var kind, args, errMsg string
	var timeSec, durationSec, enqueuedSec float64

	err := rows.Scan(
		&e.ID,
		&e.ParentID,
		&kind,
		&e.What,
		&args,
		&errMsg,
		&timeSec,
		&durationSec,
		&enqueuedSec,
	)
	if err != nil {
		panic(err)
	}

	e.Kind = Kind(kind)
	e.Time = time.Unix(0, int64(timeSec*1e9))
	e.Duration = time.Duration(durationSec * float64(time.Second))
	e.EnqueuedDuration = time.Duration(enqueuedSec * float64(time.Second))

	if errMsg != "" {
		e.Err = errors.New(errMsg)
	}

	err = json.Unmarshal([]byte(args), &e.Args)
	if err != nil {
		panic(err)
	}

	return e
}

func (r *SQLiteTraceReader) prepareEventQueryStr(
	query EventQuery,
) (string, []any) {
	sqlStr := `
		SELECT id, parent_id, kind, what, args, error,
			time, duration, enqueued_duration
		FROM trace
	`

	conditions := []string{}
	params := []any{}

	if query.ID != "" {
		conditions = append(conditions, "id = ?")
		params = append(params, query.ID)
	}

	if query.ParentID != "" {
		conditions = append(conditions, "parent_id = ?")
		params = append(params, query.ParentID)
	}

	if query.Kind != "" {
		conditions = append(conditions, "kind = ?")
		params = append(params, string(query.Kind))
	}

	if query.What != "" {
		conditions = append(conditions, "what = ?")
		params = append(params, query.What)
	}

	if query.EnableTimeRange {
		conditions = append(conditions, "time >= ?", "time <= ?")
		params = append(params, query.StartTime, query.EndTime)
	}

	if len(conditions) > 0 {
		sqlStr += fmt.Sprintf(
			"WHERE %s\n", strings.Join(conditions, " AND "))
	}

	sqlStr += "ORDER BY time"

	return sqlStr, params
}
