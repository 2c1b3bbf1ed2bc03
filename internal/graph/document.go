package graph

import (
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// Document is one workflow's set of graphs. It has no concurrency
// logic of its own: a Document is owned exclusively by the workflow's
// synchronization actor, which serializes every access.
type Document struct {
	WorkflowID string
	graphs     []*api.Graph
}

// NewDocument creates an empty document holding only the main graph.
func NewDocument(workflowID string) *Document {
	return &Document{
		WorkflowID: workflowID,
		graphs: []*api.Graph{{
			ID:     api.MainGraphID,
			IsMain: true,
		}},
	}
}

// FromGraphs reconstructs a document from persisted graphs. A missing
// main graph is repaired rather than rejected: the first graph is
// promoted, or an empty main graph is created for an empty slice.
func FromGraphs(workflowID string, graphs []*api.Graph) *Document {
	d := &Document{WorkflowID: workflowID, graphs: graphs}
	hasMain := false
	for _, g := range d.graphs {
		if g.IsMain && !hasMain {
			hasMain = true
			continue
		}
		g.IsMain = false
	}
	if !hasMain {
		if len(d.graphs) > 0 {
			d.graphs[0].IsMain = true
		} else {
			d.graphs = append(d.graphs, &api.Graph{ID: api.MainGraphID, IsMain: true})
		}
	}
	return d
}

// Graph returns the graph with the given ID. An empty ID resolves to
// the main graph.
func (d *Document) Graph(id string) (*api.Graph, bool) {
	if id == "" {
		id = api.MainGraphID
	}
	for _, g := range d.graphs {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// AddGraph appends a named subgraph.
func (d *Document) AddGraph(id, name string) (*api.Graph, error) {
	if id == "" {
		return nil, &api.ValidationError{Field: "graphId", Reason: "must not be empty"}
	}
	if _, ok := d.Graph(id); ok {
		return nil, &api.ConflictError{Reason: "graph id already exists: " + id}
	}
	g := &api.Graph{ID: id, Name: name}
	d.graphs = append(d.graphs, g)
	return g, nil
}

// RemoveGraph removes a subgraph. The main graph cannot be removed.
func (d *Document) RemoveGraph(id string) error {
	for i, g := range d.graphs {
		if g.ID != id {
			continue
		}
		if g.IsMain {
			return &api.ValidationError{Field: "graphId", Reason: "main graph cannot be removed"}
		}
		d.graphs = append(d.graphs[:i], d.graphs[i+1:]...)
		return nil
	}
	return &api.NotFoundError{Kind: "graph", ID: id}
}

// Graphs returns the document's graphs in insertion order. The slice
// and its contents are live; only the owning actor may touch them.
func (d *Document) Graphs() []*api.Graph {
	return d.graphs
}

// CloneGraphs returns a deep copy of all graphs, safe to hand to a
// reader outside the actor. Property and metadata values are copied
// one level deep; the engine treats the values themselves as
// immutable.
func (d *Document) CloneGraphs() []*api.Graph {
	out := make([]*api.Graph, len(d.graphs))
	for i, g := range d.graphs {
		out[i] = CloneGraph(g)
	}
	return out
}

// CloneGraph deep-copies a single graph.
func CloneGraph(g *api.Graph) *api.Graph {
	cp := &api.Graph{
		ID:     g.ID,
		Name:   g.Name,
		IsMain: g.IsMain,
		View:   g.View,
	}
	if g.Nodes != nil {
		cp.Nodes = make([]*api.Node, len(g.Nodes))
		for i, n := range g.Nodes {
			cp.Nodes[i] = CloneNode(n)
		}
	}
	if g.Connections != nil {
		cp.Connections = make([]*api.Connection, len(g.Connections))
		for i, c := range g.Connections {
			cc := *c
			cp.Connections[i] = &cc
		}
	}
	if g.Groups != nil {
		cp.Groups = make([]*api.Group, len(g.Groups))
		for i, gr := range g.Groups {
			cp.Groups[i] = CloneGroup(gr)
		}
	}
	return cp
}

// CloneNode deep-copies a node.
func CloneNode(n *api.Node) *api.Node {
	cp := &api.Node{
		ID:         n.ID,
		TemplateID: n.TemplateID,
		Title:      n.Title,
		Position:   n.Position,
	}
	if n.Ports != nil {
		cp.Ports = append([]api.Port(nil), n.Ports...)
	}
	cp.Properties = cloneMap(n.Properties)
	cp.Metadata = cloneMap(n.Metadata)
	return cp
}

// CloneGroup deep-copies a group.
func CloneGroup(g *api.Group) *api.Group {
	cp := *g
	if g.NodeIDs != nil {
		cp.NodeIDs = append([]string(nil), g.NodeIDs...)
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
