package api

import "context"

// Engine is the mutation API surface for collaborative workflow
// graphs. Every operation resolves (workflowId, graphId) to that
// workflow's synchronization actor and is serialized there: mutations
// for one workflow are totally ordered, mutations for different
// workflows run fully in parallel.
//
// Each mutation either commits, returning the committed entity and
// producing one ChangeRecord per mutated entity, or fails with one of
// the typed errors in this package, leaving the document unchanged.
type Engine interface {
	// AddNode adds a single node. If the node spec names a template, the
	// template must exist; its ports and property defaults seed the
	// node.
	AddNode(ctx context.Context, req AddNodeRequest) (*Node, error)

	// AddNodes adds a batch of nodes as one serialized unit. The batch
	// commits all-or-nothing; its records carry contiguous sequence
	// numbers and are never interleaved with another caller's mutation.
	AddNodes(ctx context.Context, req AddNodesRequest) ([]*Node, error)

	// RemoveNode removes a node, its connections, and its group
	// memberships in one atomic operation reported as one compound
	// change record.
	RemoveNode(ctx context.Context, req RemoveNodeRequest) error

	// ConnectNodes creates a connection from an output port to an input
	// port. An input port accepts at most one incoming connection.
	ConnectNodes(ctx context.Context, req ConnectNodesRequest) (*Connection, error)

	// RemoveConnection removes a connection by ID.
	RemoveConnection(ctx context.Context, req RemoveConnectionRequest) error

	// UpdateNodeProperties merges the given keys into the node's
	// properties; omitted keys are left untouched.
	UpdateNodeProperties(ctx context.Context, req UpdateNodePropertiesRequest) (*Node, error)

	// UpdateNodePosition replaces the node's position.
	UpdateNodePosition(ctx context.Context, req UpdateNodePositionRequest) (*Node, error)

	// CreateGroup creates a node group. Listed members must exist.
	CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error)

	// UpdateGroup partially updates a group; a non-nil NodeIDs replaces
	// the membership set wholesale.
	UpdateGroup(ctx context.Context, req UpdateGroupRequest) (*Group, error)

	// RemoveGroup removes a group, leaving its member nodes in place.
	RemoveGroup(ctx context.Context, req RemoveGroupRequest) error

	// AddGraph adds a named subgraph to the workflow.
	AddGraph(ctx context.Context, req AddGraphRequest) (*Graph, error)

	// RemoveGraph removes a subgraph. The main graph cannot be removed.
	RemoveGraph(ctx context.Context, req RemoveGraphRequest) error

	// SetGraphView replaces a graph's transient pan/zoom state.
	// Last write wins; the change is pushed live but never logged.
	SetGraphView(ctx context.Context, req SetGraphViewRequest) error

	// GetGraph reads one committed graph. The read goes through the
	// actor, so it never observes a half-applied mutation.
	GetGraph(ctx context.Context, workflowID, graphID string) (*Graph, error)

	// GetState reads the whole workflow: all graphs plus the last
	// committed sequence number.
	GetState(ctx context.Context, workflowID string) (*Snapshot, error)

	// GetPendingUpdates returns all retained change records with
	// sequence > sinceSequence, ascending. A cursor below the oldest
	// retained record yields a *CapacityError; the caller must then
	// resync via GetState.
	GetPendingUpdates(ctx context.Context, workflowID string, sinceSequence int64) ([]ChangeRecord, error)

	// ClearPendingUpdates discards every currently retained record for
	// the workflow. It affects only future polls, never the document.
	ClearPendingUpdates(ctx context.Context, workflowID string) error

	// FlushWorkflow checkpoints the workflow's graphs to the
	// persistence boundary without evicting the actor.
	FlushWorkflow(ctx context.Context, workflowID string) error

	// CloseWorkflow flushes and evicts the workflow's actor. The next
	// operation cold-starts it again from the persistence boundary.
	CloseWorkflow(ctx context.Context, workflowID string) error

	// DeleteWorkflow evicts the actor and deletes the workflow's
	// persisted graphs and pending updates.
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// Close flushes and stops every resident actor. The engine must
	// not be used afterwards.
	Close(ctx context.Context) error
}
