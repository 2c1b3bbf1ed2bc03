package api

import "time"

// RecordType identifies the kind of committed mutation a ChangeRecord
// describes. The values follow the event vocabulary exposed to SDK
// clients.
type RecordType string

const (
	RecordNodeAdded   RecordType = "node.added"
	RecordNodeUpdated RecordType = "node.updated"
	RecordNodeDeleted RecordType = "node.deleted"

	RecordConnectionAdded   RecordType = "connection.added"
	RecordConnectionDeleted RecordType = "connection.deleted"

	RecordGroupCreated RecordType = "group.created"
	RecordGroupUpdated RecordType = "group.updated"
	RecordGroupDeleted RecordType = "group.deleted"

	RecordGraphAdded       RecordType = "graph.added"
	RecordGraphDeleted     RecordType = "graph.deleted"
	RecordGraphViewUpdated RecordType = "graph.viewUpdated"
)

// ChangeRecord is the immutable fact produced by one committed
// mutation. Sequence is assigned by the workflow's actor at commit and
// is the sole ordering key; Timestamp is informational only and must
// never be used for ordering decisions.
//
// Payload holds one of the *Payload types below. Records read back
// from a persistent update log decode Payload as generic JSON values
// (map[string]any); in-process sinks receive the typed form.
type ChangeRecord struct {
	WorkflowID string     `json:"workflowId"`
	GraphID    string     `json:"graphId"`
	Sequence   int64      `json:"sequence"`
	Timestamp  time.Time  `json:"timestamp"`
	Type       RecordType `json:"type"`
	Payload    any        `json:"payload,omitempty"`
}

// NodeAddedPayload accompanies RecordNodeAdded.
type NodeAddedPayload struct {
	Node *Node `json:"node"`
}

// NodeUpdatedPayload accompanies RecordNodeUpdated. Exactly one of
// Properties and Position is set, depending on which update committed.
type NodeUpdatedPayload struct {
	NodeID     string         `json:"nodeId"`
	Properties map[string]any `json:"properties,omitempty"`
	Position   *Position      `json:"position,omitempty"`
}

// NodeDeletedPayload accompanies RecordNodeDeleted. It is a compound
// event: the cascade (connections removed, groups pruned) is part of
// the same record, so consumers never observe a dangling connection.
type NodeDeletedPayload struct {
	NodeID               string   `json:"nodeId"`
	RemovedConnectionIDs []string `json:"removedConnectionIds,omitempty"`
	PrunedGroupIDs       []string `json:"prunedGroupIds,omitempty"`
}

// ConnectionAddedPayload accompanies RecordConnectionAdded.
type ConnectionAddedPayload struct {
	Connection *Connection `json:"connection"`
}

// ConnectionDeletedPayload accompanies RecordConnectionDeleted.
type ConnectionDeletedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// GroupPayload accompanies RecordGroupCreated and RecordGroupUpdated,
// carrying the group's state after the mutation.
type GroupPayload struct {
	Group *Group `json:"group"`
}

// GroupDeletedPayload accompanies RecordGroupDeleted.
type GroupDeletedPayload struct {
	GroupID string `json:"groupId"`
}

// GraphPayload accompanies RecordGraphAdded.
type GraphPayload struct {
	GraphID string `json:"graphId"`
	Name    string `json:"name,omitempty"`
}

// GraphDeletedPayload accompanies RecordGraphDeleted.
type GraphDeletedPayload struct {
	GraphID string `json:"graphId"`
}

// GraphViewPayload accompanies RecordGraphViewUpdated. These records
// are pushed to the live sink only and never appear in the pending
// update log.
type GraphViewPayload struct {
	GraphID string    `json:"graphId"`
	View    ViewState `json:"view"`
}
