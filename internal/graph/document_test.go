package graph

import (
	"errors"
	"testing"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

func TestNewDocument_HasMainGraph(t *testing.T) {
	d := NewDocument("wf-1")

	g, ok := d.Graph(api.MainGraphID)
	if !ok {
		t.Fatalf("main graph missing")
	}
	if !g.IsMain {
		t.Fatalf("main graph not flagged as main")
	}
}

func TestDocument_EmptyIDResolvesToMain(t *testing.T) {
	d := NewDocument("wf-1")

	g, ok := d.Graph("")
	if !ok || g.ID != api.MainGraphID {
		t.Fatalf("empty graph id should resolve to main, got %+v ok=%v", g, ok)
	}
}

func TestDocument_AddAndRemoveGraph(t *testing.T) {
	d := NewDocument("wf-1")

	sub, err := d.AddGraph("sub-1", "Subflow")
	if err != nil {
		t.Fatalf("AddGraph failed: %v", err)
	}
	if sub.IsMain {
		t.Fatalf("subgraph must not be main")
	}

	_, err = d.AddGraph("sub-1", "again")
	var conflict *api.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for duplicate graph id, got %v", err)
	}

	if err := d.RemoveGraph("sub-1"); err != nil {
		t.Fatalf("RemoveGraph failed: %v", err)
	}
	if _, ok := d.Graph("sub-1"); ok {
		t.Fatalf("subgraph still present after removal")
	}
}

func TestDocument_RemoveMainGraphRejected(t *testing.T) {
	d := NewDocument("wf-1")

	err := d.RemoveGraph(api.MainGraphID)
	var ve *api.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFromGraphs_RepairsMissingMain(t *testing.T) {
	d := FromGraphs("wf-1", []*api.Graph{{ID: "sub-1"}})

	g, ok := d.Graph("sub-1")
	if !ok || !g.IsMain {
		t.Fatalf("first graph should be promoted to main, got %+v", g)
	}

	empty := FromGraphs("wf-2", nil)
	if _, ok := empty.Graph(api.MainGraphID); !ok {
		t.Fatalf("empty document should get a fresh main graph")
	}
}

func TestCloneGraph_IsDeep(t *testing.T) {
	g := &api.Graph{ID: api.MainGraphID, IsMain: true}
	node := testNode("a")
	node.Properties = map[string]any{"k": "v"}
	if err := AddNode(g, node); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if err := CreateGroup(g, &api.Group{ID: "g1", Title: "stage", NodeIDs: []string{"a"}}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	clone := CloneGraph(g)
	clone.Nodes[0].Properties["k"] = "mutated"
	clone.Nodes[0].Position.X = 99
	clone.Groups[0].NodeIDs[0] = "mutated"

	if node.Properties["k"] != "v" {
		t.Fatalf("clone shares node properties with the original")
	}
	if node.Position.X != 0 {
		t.Fatalf("clone shares node struct with the original")
	}
	if g.Groups[0].NodeIDs[0] != "a" {
		t.Fatalf("clone shares group membership with the original")
	}
}
