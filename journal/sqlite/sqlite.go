// Package sqlite keeps the journal in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rabe42/state-machines/journal"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	machine_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	timestamp  INTEGER NOT NULL,
	event      TEXT NOT NULL DEFAULT '',
	variable   TEXT NOT NULL DEFAULT '',
	value      TEXT NOT NULL DEFAULT '',
	from_node  TEXT NOT NULL DEFAULT '',
	to_node    TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS entries_machine ON entries (machine_id, seq);
`

// DefaultListLimit caps List calls that don't give their own limit.
const DefaultListLimit = 100

// Journal is a journal.Journal backed by a SQLite database.
//
// A nil Journal discards appends and lists nothing, so a service can
// run without persistence.
type Journal struct {
	db *sql.DB
}

// Open opens, and if necessary creates, the journal database.
func Open(path string) (*Journal, error) {
	if "" == strings.TrimSpace(path) {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append writes one entry, assigning its Seq.  A zero Timestamp is
// replaced by the current time.
func (j *Journal) Append(ctx context.Context, e *journal.Entry) error {
	if j == nil || j.db == nil {
		return nil
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	res, err := j.db.ExecContext(ctx, `
INSERT INTO entries (machine_id, kind, timestamp, event, variable, value, from_node, to_node, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MachineId,
		e.Kind,
		e.Timestamp.UTC().UnixMilli(),
		e.Event,
		e.Variable,
		e.Value,
		e.From,
		e.To,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		e.Seq = seq
	}

	return nil
}

// List returns a machine's entries with Seq greater than afterSeq,
// oldest first.  A non-positive limit means DefaultListLimit.
func (j *Journal) List(ctx context.Context, machineId string, afterSeq int64, limit int) ([]*journal.Entry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT seq, machine_id, kind, timestamp, event, variable, value, from_node, to_node, error
FROM entries
WHERE machine_id = ? AND seq > ?
ORDER BY seq
LIMIT ?`,
		machineId, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var (
			e  journal.Entry
			ts int64
		)
		if err := rows.Scan(&e.Seq, &e.MachineId, &e.Kind, &ts,
			&e.Event, &e.Variable, &e.Value, &e.From, &e.To, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, nil
}

var _ journal.Journal = (*Journal)(nil)
