package persistence

import (
	"context"
	"database/sql"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// SQLiteStore is a GraphStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ GraphStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database
// and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_snapshots (
			workflow_id TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			graphs BLOB NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	var (
		sequence int64
		blob     []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT sequence, graphs FROM workflow_snapshots WHERE workflow_id = ?`,
		workflowID).Scan(&sequence, &blob)
	if err == sql.ErrNoRows {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}

	graphs, err := DecodeGraphs(blob)
	if err != nil {
		return nil, err
	}
	return &api.Snapshot{
		WorkflowID: workflowID,
		Graphs:     graphs,
		Sequence:   sequence,
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *api.Snapshot) error {
	blob, err := EncodeGraphs(snap.Graphs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_snapshots (workflow_id, sequence, graphs)
		VALUES (?, ?, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET
			sequence = excluded.sequence,
			graphs = excluded.graphs`,
		snap.WorkflowID,
		snap.Sequence,
		blob,
	)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workflow_snapshots WHERE workflow_id = ?`, workflowID)
	return err
}
