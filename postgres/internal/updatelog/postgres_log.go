package updatelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// PostgresLog is a pending update Log backed by PostgreSQL, so the
// catch-up buffer is shared by every process pointing at the same
// database.
//
// It expects an *sql.DB using a PostgreSQL driver; see
// PostgresGraphStore for the driver caveats.
type PostgresLog struct {
	db        *sql.DB
	retention coreu.Retention
	now       func() time.Time
}

// Ensure PostgresLog implements Log.
var _ coreu.Log = (*PostgresLog)(nil)

// NewPostgresLog initializes the required schema in the given database
// and returns a new PostgresLog.
func NewPostgresLog(db *sql.DB, retention coreu.Retention) (*PostgresLog, error) {
	l := &PostgresLog{db: db, retention: retention, now: time.Now}
	if err := l.initSchema(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PostgresLog) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_updates (
			workflow_id TEXT NOT NULL,
			sequence BIGINT NOT NULL,
			at BIGINT NOT NULL,
			graph_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload JSONB,
			PRIMARY KEY (workflow_id, sequence)
		);
		CREATE TABLE IF NOT EXISTS pending_cursors (
			workflow_id TEXT PRIMARY KEY,
			trimmed_through BIGINT NOT NULL DEFAULT 0,
			last_sequence BIGINT NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (l *PostgresLog) Append(ctx context.Context, rec api.ChangeRecord) error {
	var payload []byte
	if rec.Payload != nil {
		var err error
		payload, err = json.Marshal(rec.Payload)
		if err != nil {
			return err
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pending_updates (workflow_id, sequence, at, graph_id, type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workflow_id, sequence) DO UPDATE SET
			at = excluded.at,
			graph_id = excluded.graph_id,
			type = excluded.type,
			payload = excluded.payload`,
		rec.WorkflowID,
		rec.Sequence,
		rec.Timestamp.UnixNano(),
		rec.GraphID,
		string(rec.Type),
		payload,
	)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO pending_cursors (workflow_id, trimmed_through, last_sequence)
		VALUES ($1, 0, $2)
		ON CONFLICT (workflow_id) DO UPDATE SET
			last_sequence = GREATEST(pending_cursors.last_sequence, excluded.last_sequence)`,
		rec.WorkflowID,
		rec.Sequence,
	)
	if err != nil {
		return err
	}

	return l.trim(ctx, rec.WorkflowID)
}

// trim enforces the retention bounds and advances trimmed_through past
// every dropped record.
func (l *PostgresLog) trim(ctx context.Context, workflowID string) error {
	var cutoffSeq int64

	if l.retention.MaxRecords > 0 {
		// Sequence of the newest record that falls outside the count
		// bound, if any.
		err := l.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence), 0) FROM (
				SELECT sequence FROM pending_updates
				WHERE workflow_id = $1
				ORDER BY sequence DESC
				OFFSET $2
			) AS overflow`, workflowID, l.retention.MaxRecords).Scan(&cutoffSeq)
		if err != nil {
			return err
		}
	}

	if l.retention.MaxAge > 0 {
		cutoffAt := l.now().Add(-l.retention.MaxAge).UnixNano()
		var ageSeq int64
		err := l.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence), 0) FROM pending_updates
			WHERE workflow_id = $1 AND at < $2`, workflowID, cutoffAt).Scan(&ageSeq)
		if err != nil {
			return err
		}
		if ageSeq > cutoffSeq {
			cutoffSeq = ageSeq
		}
	}

	if cutoffSeq == 0 {
		return nil
	}

	if _, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_updates WHERE workflow_id = $1 AND sequence <= $2`,
		workflowID, cutoffSeq); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE pending_cursors SET trimmed_through = GREATEST(trimmed_through, $1)
		WHERE workflow_id = $2`, cutoffSeq, workflowID)
	return err
}

func (l *PostgresLog) Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	if err := l.trim(ctx, workflowID); err != nil {
		return nil, err
	}

	var trimmedThrough, lastSequence int64
	err := l.db.QueryRowContext(ctx, `
		SELECT trimmed_through, last_sequence FROM pending_cursors
		WHERE workflow_id = $1`, workflowID).Scan(&trimmedThrough, &lastSequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sinceSequence < trimmedThrough {
		return nil, &api.CapacityError{
			WorkflowID:     workflowID,
			SinceSequence:  sinceSequence,
			OldestRetained: trimmedThrough + 1,
			NewestSequence: lastSequence,
		}
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT sequence, at, graph_id, type, payload
		FROM pending_updates
		WHERE workflow_id = $1 AND sequence > $2
		ORDER BY sequence ASC`, workflowID, sinceSequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.ChangeRecord
	for rows.Next() {
		var (
			seq     int64
			atN     int64
			graphID string
			typ     string
			blob    []byte
		)
		if err := rows.Scan(&seq, &atN, &graphID, &typ, &blob); err != nil {
			return nil, err
		}
		var payload any
		if len(blob) > 0 {
			if err := json.Unmarshal(blob, &payload); err != nil {
				return nil, err
			}
		}
		out = append(out, api.ChangeRecord{
			WorkflowID: workflowID,
			GraphID:    graphID,
			Sequence:   seq,
			Timestamp:  time.Unix(0, atN),
			Type:       api.RecordType(typ),
			Payload:    payload,
		})
	}
	return out, rows.Err()
}

func (l *PostgresLog) Clear(ctx context.Context, workflowID string) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_updates WHERE workflow_id = $1`, workflowID)
	return err
}

func (l *PostgresLog) Drop(ctx context.Context, workflowID string) error {
	if _, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_updates WHERE workflow_id = $1`, workflowID); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_cursors WHERE workflow_id = $1`, workflowID)
	return err
}

func (l *PostgresLog) LastSequence(ctx context.Context, workflowID string) (int64, error) {
	var last int64
	err := l.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM pending_cursors WHERE workflow_id = $1`,
		workflowID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}
