package updatelog

import (
	"context"
	"database/sql"
	"time"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// SQLiteLog is a Log backed by SQLite, so pending updates survive a
// process restart alongside the SQLite graph store.
//
// It expects an *sql.DB using a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver.
type SQLiteLog struct {
	db        *sql.DB
	retention Retention
	now       func() time.Time
}

var _ Log = (*SQLiteLog)(nil)

// NewSQLiteLog initializes the required schema in the given database
// and returns a new SQLiteLog.
func NewSQLiteLog(db *sql.DB, retention Retention) (*SQLiteLog, error) {
	l := &SQLiteLog{db: db, retention: retention, now: time.Now}
	if err := l.initSchema(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_updates (
			workflow_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			at INTEGER NOT NULL,
			graph_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload BLOB,
			PRIMARY KEY (workflow_id, sequence)
		);
		CREATE TABLE IF NOT EXISTS pending_cursors (
			workflow_id TEXT PRIMARY KEY,
			trimmed_through INTEGER NOT NULL DEFAULT 0,
			last_sequence INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (l *SQLiteLog) Append(ctx context.Context, rec api.ChangeRecord) error {
	payload, err := encodePayload(rec.Payload)
	if err != nil {
		return err
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_updates (workflow_id, sequence, at, graph_id, type, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
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
		VALUES (?, 0, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET
			last_sequence = MAX(last_sequence, excluded.last_sequence)`,
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
func (l *SQLiteLog) trim(ctx context.Context, workflowID string) error {
	var cutoffSeq int64

	if l.retention.MaxRecords > 0 {
		// Sequence of the newest record that falls outside the count
		// bound, if any.
		err := l.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence), 0) FROM (
				SELECT sequence FROM pending_updates
				WHERE workflow_id = ?
				ORDER BY sequence DESC
				LIMIT -1 OFFSET ?
			)`, workflowID, l.retention.MaxRecords).Scan(&cutoffSeq)
		if err != nil {
			return err
		}
	}

	if l.retention.MaxAge > 0 {
		cutoffAt := l.now().Add(-l.retention.MaxAge).UnixNano()
		var ageSeq int64
		err := l.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(sequence), 0) FROM pending_updates
			WHERE workflow_id = ? AND at < ?`, workflowID, cutoffAt).Scan(&ageSeq)
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
		DELETE FROM pending_updates WHERE workflow_id = ? AND sequence <= ?`,
		workflowID, cutoffSeq); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE pending_cursors SET trimmed_through = MAX(trimmed_through, ?)
		WHERE workflow_id = ?`, cutoffSeq, workflowID)
	return err
}

func (l *SQLiteLog) Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	if err := l.trim(ctx, workflowID); err != nil {
		return nil, err
	}

	var trimmedThrough, lastSequence int64
	err := l.db.QueryRowContext(ctx, `
		SELECT trimmed_through, last_sequence FROM pending_cursors
		WHERE workflow_id = ?`, workflowID).Scan(&trimmedThrough, &lastSequence)
	if err == sql.ErrNoRows {
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
		WHERE workflow_id = ? AND sequence > ?
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
		payload, err := decodePayload(blob)
		if err != nil {
			return nil, err
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

func (l *SQLiteLog) Clear(ctx context.Context, workflowID string) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_updates WHERE workflow_id = ?`, workflowID)
	return err
}

func (l *SQLiteLog) Drop(ctx context.Context, workflowID string) error {
	if _, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_updates WHERE workflow_id = ?`, workflowID); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM pending_cursors WHERE workflow_id = ?`, workflowID)
	return err
}

func (l *SQLiteLog) LastSequence(ctx context.Context, workflowID string) (int64, error) {
	var last int64
	err := l.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM pending_cursors WHERE workflow_id = ?`,
		workflowID).Scan(&last)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last, nil
}
