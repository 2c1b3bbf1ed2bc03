package persistence

import (
	"context"
	"database/sql"
	"errors"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// PostgresGraphStore is a GraphStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresGraphStore struct {
	db *sql.DB
}

// Ensure PostgresGraphStore implements GraphStore.
var _ corep.GraphStore = (*PostgresGraphStore)(nil)

// NewPostgresGraphStore initializes the required schema in the given
// database and returns a new PostgresGraphStore.
func NewPostgresGraphStore(db *sql.DB) (*PostgresGraphStore, error) {
	s := &PostgresGraphStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresGraphStore) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_snapshots (
			workflow_id TEXT PRIMARY KEY,
			sequence BIGINT NOT NULL,
			graphs JSONB NOT NULL
		);
	`)
	return err
}

func (p *PostgresGraphStore) Load(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	var (
		sequence int64
		blob     []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT sequence, graphs FROM workflow_snapshots WHERE workflow_id = $1`,
		workflowID).Scan(&sequence, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corep.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}

	graphs, err := corep.DecodeGraphs(blob)
	if err != nil {
		return nil, err
	}
	return &api.Snapshot{
		WorkflowID: workflowID,
		Graphs:     graphs,
		Sequence:   sequence,
	}, nil
}

func (p *PostgresGraphStore) Save(ctx context.Context, snap *api.Snapshot) error {
	blob, err := corep.EncodeGraphs(snap.Graphs)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflow_snapshots (workflow_id, sequence, graphs)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_id) DO UPDATE SET
			sequence = excluded.sequence,
			graphs = excluded.graphs`,
		snap.WorkflowID,
		snap.Sequence,
		blob,
	)
	return err
}

func (p *PostgresGraphStore) Delete(ctx context.Context, workflowID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM workflow_snapshots WHERE workflow_id = $1`, workflowID)
	return err
}
