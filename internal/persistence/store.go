package persistence

import (
	"context"
	"errors"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// ErrWorkflowNotFound is returned when no snapshot exists for a
// workflow. The engine treats it as "fresh workflow": the actor
// cold-starts with an empty main graph.
var ErrWorkflowNotFound = errors.New("workflow not found")

// GraphStore is the persistence boundary for workflow documents. The
// engine uses it purely as a durability checkpoint: Load on actor
// cold-start, Save on flush and eviction. While an actor is resident,
// its in-memory document is the live truth, not the store.
type GraphStore interface {
	// Load returns the last saved snapshot for the workflow, or
	// ErrWorkflowNotFound if none was ever saved.
	Load(ctx context.Context, workflowID string) (*api.Snapshot, error)

	// Save replaces the workflow's snapshot.
	Save(ctx context.Context, snap *api.Snapshot) error

	// Delete removes the workflow's snapshot. Deleting a workflow that
	// was never saved is not an error.
	Delete(ctx context.Context, workflowID string) error
}
