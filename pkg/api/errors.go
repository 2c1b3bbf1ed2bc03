package api

import "fmt"

// The engine reports every rejected mutation with one of the typed
// errors below. They carry enough structured detail for a calling
// layer to render an actionable message. Match them with errors.As.

// ValidationError means the request payload itself is malformed:
// a missing required field, an unknown template, a port used in the
// wrong direction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return "validation failed: " + e.Reason
}

// NotFoundError means a referenced entity does not exist.
// Kind is one of "workflow", "graph", "node", "port", "connection",
// "group".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConflictError means the mutation contradicts committed state, for
// example a second connection into an input port that already has one.
type ConflictError struct {
	Reason string
	NodeID string
	PortID string
}

func (e *ConflictError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("conflict on %s.%s: %s", e.NodeID, e.PortID, e.Reason)
	}
	return "conflict: " + e.Reason
}

// ReferentialIntegrityError means the mutation references a node that
// is not present in the graph at commit time (connection endpoints,
// group membership).
type ReferentialIntegrityError struct {
	Reason string
	NodeID string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity: %s (node %s)", e.Reason, e.NodeID)
}

// CapacityError is returned by the polling interface when the caller's
// cursor points below the oldest retained record: records it has never
// seen were already trimmed, so an incremental catch-up would be
// gapped. The caller must resynchronize from a full snapshot
// (Engine.GetState) and restart its cursor at Snapshot.Sequence.
type CapacityError struct {
	WorkflowID     string
	SinceSequence  int64
	OldestRetained int64
	NewestSequence int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"pending updates for workflow %s pruned: cursor %d is older than oldest retained %d, resync from snapshot",
		e.WorkflowID, e.SinceSequence, e.OldestRetained,
	)
}
