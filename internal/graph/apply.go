package graph

import (
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// The functions in this file implement the mutation applier: each one
// validates an operation against the committed graph and, only when
// every invariant holds, mutates the graph. Nothing is written before
// all checks pass, so a failed operation leaves the graph untouched.

// FindNode returns the node with the given ID, or nil.
func FindNode(g *api.Graph, nodeID string) *api.Node {
	for _, n := range g.Nodes {
		if n.ID == nodeID {
			return n
		}
	}
	return nil
}

// FindConnection returns the connection with the given ID, or nil.
func FindConnection(g *api.Graph, connectionID string) *api.Connection {
	for _, c := range g.Connections {
		if c.ID == connectionID {
			return c
		}
	}
	return nil
}

// FindGroup returns the group with the given ID, or nil.
func FindGroup(g *api.Graph, groupID string) *api.Group {
	for _, gr := range g.Groups {
		if gr.ID == groupID {
			return gr
		}
	}
	return nil
}

func findPort(n *api.Node, portID string) (api.Port, bool) {
	for _, p := range n.Ports {
		if p.ID == portID {
			return p, true
		}
	}
	return api.Port{}, false
}

// incomingConnection returns the connection already targeting the given
// input port, or nil.
func incomingConnection(g *api.Graph, nodeID, portID string) *api.Connection {
	for _, c := range g.Connections {
		if c.Target.NodeID == nodeID && c.Target.PortID == portID {
			return c
		}
	}
	return nil
}

// AddNode inserts a fully-formed node. The node's ID must be unique
// within the graph.
func AddNode(g *api.Graph, node *api.Node) error {
	if node.ID == "" {
		return &api.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}
	if FindNode(g, node.ID) != nil {
		return &api.ConflictError{Reason: "node id already exists", NodeID: node.ID}
	}
	g.Nodes = append(g.Nodes, node)
	return nil
}

// RemoveNode removes a node and cascades: every connection touching the
// node is removed and the node is pruned from every group's membership
// set, all within the same operation. It returns the removed node and
// the IDs of the cascaded entities so the caller can report one
// compound change record.
func RemoveNode(g *api.Graph, nodeID string) (node *api.Node, removedConnIDs, prunedGroupIDs []string, err error) {
	node = FindNode(g, nodeID)
	if node == nil {
		return nil, nil, nil, &api.NotFoundError{Kind: "node", ID: nodeID}
	}

	kept := g.Connections[:0]
	for _, c := range g.Connections {
		if c.Source.NodeID == nodeID || c.Target.NodeID == nodeID {
			removedConnIDs = append(removedConnIDs, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	g.Connections = kept

	for _, gr := range g.Groups {
		members := gr.NodeIDs[:0]
		pruned := false
		for _, id := range gr.NodeIDs {
			if id == nodeID {
				pruned = true
				continue
			}
			members = append(members, id)
		}
		gr.NodeIDs = members
		if pruned {
			prunedGroupIDs = append(prunedGroupIDs, gr.ID)
		}
	}

	for i, n := range g.Nodes {
		if n.ID == nodeID {
			g.Nodes = append(g.Nodes[:i], g.Nodes[i+1:]...)
			break
		}
	}
	return node, removedConnIDs, prunedGroupIDs, nil
}

// Connect validates and inserts a connection. The source must resolve
// to an output port and the target to an input port on nodes present
// in the graph, and the target input must not already have an incoming
// connection.
func Connect(g *api.Graph, conn *api.Connection) error {
	if conn.ID == "" {
		return &api.ValidationError{Field: "connectionId", Reason: "must not be empty"}
	}
	if FindConnection(g, conn.ID) != nil {
		return &api.ConflictError{Reason: "connection id already exists: " + conn.ID}
	}

	src := FindNode(g, conn.Source.NodeID)
	if src == nil {
		return &api.ReferentialIntegrityError{Reason: "source node does not exist", NodeID: conn.Source.NodeID}
	}
	dst := FindNode(g, conn.Target.NodeID)
	if dst == nil {
		return &api.ReferentialIntegrityError{Reason: "target node does not exist", NodeID: conn.Target.NodeID}
	}

	srcPort, ok := findPort(src, conn.Source.PortID)
	if !ok {
		return &api.NotFoundError{Kind: "port", ID: conn.Source.NodeID + "." + conn.Source.PortID}
	}
	if srcPort.Direction != api.PortOutput {
		return &api.ValidationError{Field: "source.portId", Reason: "not an output port: " + srcPort.ID}
	}

	dstPort, ok := findPort(dst, conn.Target.PortID)
	if !ok {
		return &api.NotFoundError{Kind: "port", ID: conn.Target.NodeID + "." + conn.Target.PortID}
	}
	if dstPort.Direction != api.PortInput {
		return &api.ValidationError{Field: "target.portId", Reason: "not an input port: " + dstPort.ID}
	}

	if existing := incomingConnection(g, conn.Target.NodeID, conn.Target.PortID); existing != nil {
		return &api.ConflictError{
			Reason: "input port already has an incoming connection (" + existing.ID + ")",
			NodeID: conn.Target.NodeID,
			PortID: conn.Target.PortID,
		}
	}

	g.Connections = append(g.Connections, conn)
	return nil
}

// RemoveConnection removes a connection by ID.
func RemoveConnection(g *api.Graph, connectionID string) error {
	for i, c := range g.Connections {
		if c.ID == connectionID {
			g.Connections = append(g.Connections[:i], g.Connections[i+1:]...)
			return nil
		}
	}
	return &api.NotFoundError{Kind: "connection", ID: connectionID}
}

// UpdateProperties merges the given keys into the node's properties.
// Keys absent from props stay untouched; within one workflow the
// actor's serialization makes same-key races last-committed-wins.
func UpdateProperties(g *api.Graph, nodeID string, props map[string]any) (*api.Node, error) {
	if len(props) == 0 {
		return nil, &api.ValidationError{Field: "properties", Reason: "no keys to update"}
	}
	node := FindNode(g, nodeID)
	if node == nil {
		return nil, &api.NotFoundError{Kind: "node", ID: nodeID}
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any, len(props))
	}
	for k, v := range props {
		node.Properties[k] = v
	}
	return node, nil
}

// UpdatePosition replaces the node's position outright.
func UpdatePosition(g *api.Graph, nodeID string, pos api.Position) (*api.Node, error) {
	node := FindNode(g, nodeID)
	if node == nil {
		return nil, &api.NotFoundError{Kind: "node", ID: nodeID}
	}
	node.Position = pos
	return node, nil
}

// CreateGroup inserts a group after verifying that every listed member
// exists in the graph.
func CreateGroup(g *api.Graph, group *api.Group) error {
	if group.ID == "" {
		return &api.ValidationError{Field: "groupId", Reason: "must not be empty"}
	}
	if group.Title == "" {
		return &api.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if FindGroup(g, group.ID) != nil {
		return &api.ConflictError{Reason: "group id already exists: " + group.ID}
	}
	for _, id := range group.NodeIDs {
		if FindNode(g, id) == nil {
			return &api.ReferentialIntegrityError{Reason: "group member does not exist", NodeID: id}
		}
	}
	group.NodeIDs = dedupe(group.NodeIDs)
	g.Groups = append(g.Groups, group)
	return nil
}

// UpdateGroup applies a partial group update. Nil pointer fields are
// untouched; a non-nil NodeIDs replaces the membership set wholesale
// after the same existence check CreateGroup performs.
func UpdateGroup(g *api.Graph, req api.UpdateGroupRequest) (*api.Group, error) {
	group := FindGroup(g, req.GroupID)
	if group == nil {
		return nil, &api.NotFoundError{Kind: "group", ID: req.GroupID}
	}
	if req.NodeIDs != nil {
		for _, id := range req.NodeIDs {
			if FindNode(g, id) == nil {
				return nil, &api.ReferentialIntegrityError{Reason: "group member does not exist", NodeID: id}
			}
		}
	}

	if req.Title != nil {
		group.Title = *req.Title
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Color != nil {
		group.Color = *req.Color
	}
	if req.NodeIDs != nil {
		group.NodeIDs = dedupe(req.NodeIDs)
	}
	return group, nil
}

// RemoveGroup removes a group by ID. Member nodes are unaffected.
func RemoveGroup(g *api.Graph, groupID string) error {
	for i, gr := range g.Groups {
		if gr.ID == groupID {
			g.Groups = append(g.Groups[:i], g.Groups[i+1:]...)
			return nil
		}
	}
	return &api.NotFoundError{Kind: "group", ID: groupID}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
