package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/petrijr/gantry/pkg/api"
)

// SQLiteSnapshotStore is a SnapshotStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// Ensure SQLiteSnapshotStore implements SnapshotStore.
var _ SnapshotStore = (*SQLiteSnapshotStore)(nil)

// NewSQLiteSnapshotStore initializes the required schema in the given
// database and returns a new SQLiteSnapshotStore.
func NewSQLiteSnapshotStore(db *sql.DB) (*SQLiteSnapshotStore, error) {
	s := &SQLiteSnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSnapshotStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			steps BLOB,
			data BLOB,
			history BLOB,
			created_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteSnapshotStore) SaveSnapshot(ctx context.Context, w *api.Workflow) error {
	steps, err := EncodeSteps(w.Steps)
	if err != nil {
		return err
	}
	data, err := EncodeData(w.Data)
	if err != nil {
		return err
	}
	history, err := EncodeHistory(w.History)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, status, steps, data, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			steps = excluded.steps,
			data = excluded.data,
			history = excluded.history`,
		w.ID,
		w.Name,
		string(w.Status),
		steps,
		data,
		history,
		w.CreatedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteSnapshotStore) GetSnapshot(ctx context.Context, id string) (*api.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, steps, data, history, created_at
		FROM workflows
		WHERE id = ?`,
		id,
	)

	w, err := scanSnapshot(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return w, nil
}

func (s *SQLiteSnapshotStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*api.Workflow, error) {
	query := `
		SELECT id, name, status, steps, data, history, created_at
		FROM workflows`
	var args []any
	var clauses []string

	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.Workflow
	for rows.Next() {
		w, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteSnapshotStore) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	return err
}

func scanSnapshot(scan func(dest ...any) error) (*api.Workflow, error) {
	var w api.Workflow
	var statusStr string
	var steps, data, history []byte
	var createdAt int64

	if err := scan(&w.ID, &w.Name, &statusStr, &steps, &data, &history, &createdAt); err != nil {
		return nil, err
	}

	w.Status = api.Status(statusStr)
	w.CreatedAt = time.Unix(0, createdAt)

	decodedSteps, err := DecodeSteps(steps)
	if err != nil {
		return nil, err
	}
	w.Steps = decodedSteps

	decodedData, err := DecodeData(data)
	if err != nil {
		return nil, err
	}
	w.Data = decodedData

	decodedHistory, err := DecodeHistory(history)
	if err != nil {
		return nil, err
	}
	w.History = decodedHistory

	return &w, nil
}
