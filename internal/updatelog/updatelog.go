package updatelog

import (
	"context"
	"time"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// Retention bounds how much history a Log keeps per workflow. A zero
// field means "no bound on that axis"; the engine applies its own
// defaults before constructing a log.
type Retention struct {
	// MaxRecords keeps at most this many records per workflow.
	MaxRecords int

	// MaxAge drops records older than this.
	MaxAge time.Duration
}

// Log is the pending update log: a time-ordered, retention-bounded
// buffer of change records per workflow, queryable by sequence cursor
// for catch-up polling.
//
// Append is best-effort relative to the committed mutation: an append
// failure never rolls back the document, the source of truth.
type Log interface {
	// Append retains one committed record. Records arrive in sequence
	// order per workflow.
	Append(ctx context.Context, rec api.ChangeRecord) error

	// Query returns all retained records with sequence > sinceSequence,
	// in ascending sequence order. If records above sinceSequence were
	// already trimmed, it returns *api.CapacityError.
	Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error)

	// Clear discards every currently retained record for the workflow.
	// It affects only future Query results.
	Clear(ctx context.Context, workflowID string) error

	// Drop removes all log state for the workflow, including trim
	// bookkeeping. Used when the workflow itself is deleted.
	Drop(ctx context.Context, workflowID string) error

	// LastSequence reports the highest sequence ever appended for the
	// workflow, or 0. It survives Clear, so a reloaded actor can keep
	// its counter monotonic.
	LastSequence(ctx context.Context, workflowID string) (int64, error)
}
