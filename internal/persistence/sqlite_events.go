package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/gantry/pkg/api"
)

// SQLiteEventStore stores workflow lifecycle events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements EventStore.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL DEFAULT '',
			attempt INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_events_workflow_id ON workflow_events(workflow_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_events (workflow_id, workflow_name, at, type, step, from_status, to_status, attempt, duration_ns, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.WorkflowID,
		ev.WorkflowName,
		at.UnixNano(),
		string(ev.Type),
		ev.Step,
		string(ev.From),
		string(ev.To),
		ev.Attempt,
		ev.Duration.Nanoseconds(),
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id, workflow_name, at, type, step, from_status, to_status, attempt, duration_ns, detail
		FROM workflow_events
		WHERE workflow_id = ?
		ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Event
	for rows.Next() {
		var (
			ev         api.Event
			atN        int64
			typ        string
			from, to   string
			durationNs int64
		)
		if err := rows.Scan(&ev.WorkflowID, &ev.WorkflowName, &atN, &typ, &ev.Step, &from, &to, &ev.Attempt, &durationNs, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN)
		ev.Type = api.EventType(typ)
		ev.From = api.Status(from)
		ev.To = api.Status(to)
		ev.Duration = time.Duration(durationNs)
		out = append(out, ev)
	}
	return out, rows.Err()
}
