package api

// PortDirection says which way data flows through a port.
type PortDirection string

const (
	PortInput  PortDirection = "input"
	PortOutput PortDirection = "output"
)

// Position represents x,y canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PortRef addresses one port of one node.
type PortRef struct {
	NodeID string `json:"nodeId"`
	PortID string `json:"portId"`
}

// Port is an addressable input or output of a node. Ports are not
// independent entities; they exist only as part of a node (usually
// inherited from its template).
type Port struct {
	ID        string        `json:"id"`
	Label     string        `json:"label,omitempty"`
	Direction PortDirection `json:"direction"`
}

// Node is a single block on the workflow canvas.
type Node struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"templateId,omitempty"`
	Title      string         `json:"title,omitempty"`
	Position   Position       `json:"position"`
	Ports      []Port         `json:"ports,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Connection is a directed edge from an output port to an input port.
// Both endpoints must reference nodes present in the same graph.
type Connection struct {
	ID     string  `json:"id"`
	Source PortRef `json:"source"`
	Target PortRef `json:"target"`
}

// Group is a named set of nodes. Membership is a weak reference: when a
// member node is removed, its ID is pruned from the group rather than
// the group being invalidated.
type Group struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	NodeIDs     []string `json:"nodeIds"`
}

// ViewState is transient pan/zoom canvas state. It is last-write-wins
// and never participates in conflict resolution or catch-up polling.
type ViewState struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Zoom    float64 `json:"zoom"`
}

// Graph holds the nodes, connections and groups of one canvas. Every
// workflow has exactly one main graph (ID "main"); the rest are named
// subgraphs.
type Graph struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	IsMain      bool          `json:"isMain"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	Groups      []*Group      `json:"groups"`
	View        ViewState     `json:"view"`
}

// MainGraphID is the graph every operation defaults to when the request
// leaves GraphID empty.
const MainGraphID = "main"

// Snapshot is a consistent full-state read of one workflow: all of its
// graphs plus the sequence number of the last committed mutation.
// Polling consumers use Sequence to restart their cursor after a resync.
type Snapshot struct {
	WorkflowID string   `json:"workflowId"`
	Graphs     []*Graph `json:"graphs"`
	Sequence   int64    `json:"sequence"`
}

// NodeSpec describes one node to add. NodeID may be left empty, in
// which case the engine generates one; callers that might retry after
// an ambiguous response should pre-generate the ID (see NewID) so that
// the retry is recognizable as a duplicate.
type NodeSpec struct {
	NodeID     string         `json:"nodeId,omitempty"`
	TemplateID string         `json:"templateId,omitempty"`
	Title      string         `json:"title,omitempty"`
	Position   Position       `json:"position"`
	Ports      []Port         `json:"ports,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AddNodeRequest adds a single node to a graph.
type AddNodeRequest struct {
	WorkflowID string `json:"workflowId"`
	GraphID    string `json:"graphId,omitempty"`
	NodeSpec
}

// AddNodesRequest adds several nodes as one serialized unit. The batch
// commits all-or-nothing and its change records carry contiguous
// sequence numbers; no other caller's mutation interleaves with it.
type AddNodesRequest struct {
	WorkflowID string     `json:"workflowId"`
	GraphID    string     `json:"graphId,omitempty"`
	Nodes      []NodeSpec `json:"nodes"`
}

// RemoveNodeRequest removes a node, cascading removal of every
// connection that references it and pruning it from group membership.
type RemoveNodeRequest struct {
	WorkflowID string `json:"workflowId"`
	GraphID    string `json:"graphId,omitempty"`
	NodeID     string `json:"nodeId"`
}

// ConnectNodesRequest creates a connection between two ports.
// ConnectionID may be empty; see NodeSpec.NodeID for the retry caveat.
type ConnectNodesRequest struct {
	WorkflowID   string  `json:"workflowId"`
	GraphID      string  `json:"graphId,omitempty"`
	ConnectionID string  `json:"connectionId,omitempty"`
	Source       PortRef `json:"source"`
	Target       PortRef `json:"target"`
}

// RemoveConnectionRequest removes a connection by ID.
type RemoveConnectionRequest struct {
	WorkflowID   string `json:"workflowId"`
	GraphID      string `json:"graphId,omitempty"`
	ConnectionID string `json:"connectionId"`
}

// UpdateNodePropertiesRequest merges the given keys into a node's
// properties. Keys absent from Properties are left untouched, so two
// callers updating disjoint keys never clobber each other.
type UpdateNodePropertiesRequest struct {
	WorkflowID string         `json:"workflowId"`
	GraphID    string         `json:"graphId,omitempty"`
	NodeID     string         `json:"nodeId"`
	Properties map[string]any `json:"properties"`
}

// UpdateNodePositionRequest replaces a node's position outright.
type UpdateNodePositionRequest struct {
	WorkflowID string   `json:"workflowId"`
	GraphID    string   `json:"graphId,omitempty"`
	NodeID     string   `json:"nodeId"`
	Position   Position `json:"position"`
}

// CreateGroupRequest creates a node group. Every listed node must exist
// in the graph at commit time.
type CreateGroupRequest struct {
	WorkflowID  string   `json:"workflowId"`
	GraphID     string   `json:"graphId,omitempty"`
	GroupID     string   `json:"groupId,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	NodeIDs     []string `json:"nodeIds,omitempty"`
}

// UpdateGroupRequest partially updates a group. Nil pointer fields are
// left untouched. NodeIDs, when non-nil, replaces the membership set
// wholesale rather than merging into it.
type UpdateGroupRequest struct {
	WorkflowID  string   `json:"workflowId"`
	GraphID     string   `json:"graphId,omitempty"`
	GroupID     string   `json:"groupId"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Color       *string  `json:"color,omitempty"`
	NodeIDs     []string `json:"nodeIds,omitempty"`
}

// RemoveGroupRequest removes a group. Member nodes are unaffected.
type RemoveGroupRequest struct {
	WorkflowID string `json:"workflowId"`
	GraphID    string `json:"graphId,omitempty"`
	GroupID    string `json:"groupId"`
}

// AddGraphRequest adds a named subgraph to a workflow.
type AddGraphRequest struct {
	WorkflowID string `json:"workflowId"`
	GraphID    string `json:"graphId"`
	Name       string `json:"name,omitempty"`
}

// RemoveGraphRequest removes a subgraph. The main graph cannot be
// removed.
type RemoveGraphRequest struct {
	WorkflowID string `json:"workflowId"`
	GraphID    string `json:"graphId"`
}

// SetGraphViewRequest replaces a graph's transient view state.
// Last write wins; the update is pushed to the live sink but never
// retained in the pending update log.
type SetGraphViewRequest struct {
	WorkflowID string    `json:"workflowId"`
	GraphID    string    `json:"graphId,omitempty"`
	View       ViewState `json:"view"`
}
