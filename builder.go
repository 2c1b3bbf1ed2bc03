package zeal

import (
	"context"
	"fmt"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// GraphBuilder provides a fluent API for assembling a workflow graph:
//
//	b := zeal.NewGraphBuilder("order-pipeline").
//	    Node("fetch", zeal.NodeSpec{TemplateID: "tpl-http"}).
//	    Node("transform", zeal.NodeSpec{TemplateID: "tpl-script"}).
//	    Connect("fetch", "out", "transform", "in").
//	    Group("Ingest", "fetch", "transform")
//
//	nodes, err := b.Apply(ctx, engine)
//
// Node keys double as node IDs, so Connect and Group can refer to
// nodes declared earlier in the chain.
type GraphBuilder struct {
	workflowID string
	graphID    string

	nodes  []api.NodeSpec
	conns  []api.ConnectNodesRequest
	groups []api.CreateGroupRequest
}

// NewGraphBuilder creates a builder targeting the workflow's main graph.
func NewGraphBuilder(workflowID string) *GraphBuilder {
	return &GraphBuilder{
		workflowID: workflowID,
		graphID:    api.MainGraphID,
	}
}

// OnGraph retargets the builder at the given subgraph.
func (b *GraphBuilder) OnGraph(graphID string) *GraphBuilder {
	b.graphID = graphID
	return b
}

// WorkflowID returns the workflow this builder targets.
func (b *GraphBuilder) WorkflowID() string {
	return b.workflowID
}

// Node adds a node declaration. The id becomes the node's ID and can be
// referenced by later Connect and Group calls.
func (b *GraphBuilder) Node(id string, spec NodeSpec) *GraphBuilder {
	if id == "" {
		panic("zeal: node id must not be empty")
	}
	spec.NodeID = id
	b.nodes = append(b.nodes, spec)
	return b
}

// Connect declares a connection from an output port to an input port of
// previously declared nodes.
func (b *GraphBuilder) Connect(sourceNode, sourcePort, targetNode, targetPort string) *GraphBuilder {
	if !b.hasNode(sourceNode) {
		panic(fmt.Sprintf("zeal: connect references undeclared node %q", sourceNode))
	}
	if !b.hasNode(targetNode) {
		panic(fmt.Sprintf("zeal: connect references undeclared node %q", targetNode))
	}

	b.conns = append(b.conns, api.ConnectNodesRequest{
		WorkflowID: b.workflowID,
		GraphID:    b.graphID,
		Source:     api.PortRef{NodeID: sourceNode, PortID: sourcePort},
		Target:     api.PortRef{NodeID: targetNode, PortID: targetPort},
	})
	return b
}

// Group declares a group over previously declared nodes.
func (b *GraphBuilder) Group(title string, nodeIDs ...string) *GraphBuilder {
	for _, id := range nodeIDs {
		if !b.hasNode(id) {
			panic(fmt.Sprintf("zeal: group %q references undeclared node %q", title, id))
		}
	}

	b.groups = append(b.groups, api.CreateGroupRequest{
		WorkflowID: b.workflowID,
		GraphID:    b.graphID,
		Title:      title,
		NodeIDs:    append([]string(nil), nodeIDs...),
	})
	return b
}

func (b *GraphBuilder) hasNode(id string) bool {
	for _, spec := range b.nodes {
		if spec.NodeID == id {
			return true
		}
	}
	return false
}

// Apply commits the declarations against the engine. Nodes go in as a
// single atomic batch; connections and groups follow as individual
// mutations, stopping at the first error. Returns the created nodes.
func (b *GraphBuilder) Apply(ctx context.Context, eng Engine) ([]*Node, error) {
	if len(b.nodes) == 0 {
		return nil, &api.ValidationError{Field: "nodes", Reason: "builder has no nodes"}
	}

	nodes, err := eng.AddNodes(ctx, api.AddNodesRequest{
		WorkflowID: b.workflowID,
		GraphID:    b.graphID,
		Nodes:      b.nodes,
	})
	if err != nil {
		return nil, err
	}

	for _, req := range b.conns {
		if _, err := eng.ConnectNodes(ctx, req); err != nil {
			return nodes, err
		}
	}
	for _, req := range b.groups {
		if _, err := eng.CreateGroup(ctx, req); err != nil {
			return nodes, err
		}
	}
	return nodes, nil
}

// MustApply is like Apply but panics on error.
// Useful for fixed graph shapes set up in main().
func (b *GraphBuilder) MustApply(ctx context.Context, eng Engine) []*Node {
	nodes, err := b.Apply(ctx, eng)
	if err != nil {
		panic(err)
	}
	return nodes
}
