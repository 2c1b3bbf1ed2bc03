package persistence

import (
	"errors"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
)

func (p *PostgresStoreTestSuite) TestPostgresGraphStore_SaveLoadRoundTrip() {
	snap := sampleSnapshot("wf-pg-1")

	err := p.store.Save(p.ctx, snap)
	p.NoError(err, "Save failed")

	got, err := p.store.Load(p.ctx, "wf-pg-1")
	p.NoError(err, "Load failed")

	p.Equal("wf-pg-1", got.WorkflowID)
	p.Equal(int64(7), got.Sequence)
	p.Len(got.Graphs, 2)

	main := got.Graphs[0]
	p.True(main.IsMain)
	p.Len(main.Nodes, 2)
	p.Equal("Fetch", main.Nodes[0].Title)
	p.Equal("https://example.com", main.Nodes[0].Properties["url"])
	p.Len(main.Nodes[0].Ports, 2)
	p.Equal("out", main.Nodes[0].Ports[1].ID)

	p.Len(main.Connections, 1)
	p.Equal("n1", main.Connections[0].Source.NodeID)
	p.Equal("in", main.Connections[0].Target.PortID)

	p.Len(main.Groups, 1)
	p.Equal([]string{"n1", "n2"}, main.Groups[0].NodeIDs)
	p.Equal(1.25, main.View.Zoom)

	p.Equal("validation", got.Graphs[1].ID)
	p.False(got.Graphs[1].IsMain)
}

func (p *PostgresStoreTestSuite) TestPostgresGraphStore_SaveOverwrites() {
	snap := sampleSnapshot("wf-pg-2")
	p.NoError(p.store.Save(p.ctx, snap))

	snap.Sequence = 12
	snap.Graphs[0].Nodes[0].Title = "Fetch v2"
	p.NoError(p.store.Save(p.ctx, snap))

	got, err := p.store.Load(p.ctx, "wf-pg-2")
	p.NoError(err)
	p.Equal(int64(12), got.Sequence)
	p.Equal("Fetch v2", got.Graphs[0].Nodes[0].Title)
}

func (p *PostgresStoreTestSuite) TestPostgresGraphStore_LoadMissing() {
	_, err := p.store.Load(p.ctx, "wf-pg-never-saved")
	p.True(errors.Is(err, corep.ErrWorkflowNotFound), "want ErrWorkflowNotFound, got %v", err)
}

func (p *PostgresStoreTestSuite) TestPostgresGraphStore_Delete() {
	snap := sampleSnapshot("wf-pg-3")
	p.NoError(p.store.Save(p.ctx, snap))

	p.NoError(p.store.Delete(p.ctx, "wf-pg-3"))

	_, err := p.store.Load(p.ctx, "wf-pg-3")
	p.True(errors.Is(err, corep.ErrWorkflowNotFound))

	// Deleting again is not an error.
	p.NoError(p.store.Delete(p.ctx, "wf-pg-3"))
}
