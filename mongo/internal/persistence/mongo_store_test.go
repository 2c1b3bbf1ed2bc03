package persistence

import (
	"errors"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
)

func (m *MongoStoreTestSuite) TestMongoGraphStore_SaveLoadRoundTrip() {
	snap := sampleSnapshot("wf-mongo-1")

	err := m.store.Save(m.ctx, snap)
	m.NoError(err, "Save failed")

	got, err := m.store.Load(m.ctx, "wf-mongo-1")
	m.NoError(err, "Load failed")

	m.Equal("wf-mongo-1", got.WorkflowID)
	m.Equal(int64(7), got.Sequence)
	m.Len(got.Graphs, 2)

	main := got.Graphs[0]
	m.True(main.IsMain)
	m.Len(main.Nodes, 1)
	m.Equal("Fetch", main.Nodes[0].Title)
	m.Equal("https://example.com", main.Nodes[0].Properties["url"])
	m.Len(main.Nodes[0].Ports, 2)

	m.Len(main.Groups, 1)
	m.Equal([]string{"n1"}, main.Groups[0].NodeIDs)
	m.Equal(1.25, main.View.Zoom)

	m.Equal("validation", got.Graphs[1].ID)
	m.False(got.Graphs[1].IsMain)
}

func (m *MongoStoreTestSuite) TestMongoGraphStore_SaveOverwrites() {
	snap := sampleSnapshot("wf-mongo-2")
	m.NoError(m.store.Save(m.ctx, snap))

	snap.Sequence = 12
	snap.Graphs[0].Nodes[0].Title = "Fetch v2"
	m.NoError(m.store.Save(m.ctx, snap))

	got, err := m.store.Load(m.ctx, "wf-mongo-2")
	m.NoError(err)
	m.Equal(int64(12), got.Sequence)
	m.Equal("Fetch v2", got.Graphs[0].Nodes[0].Title)
}

func (m *MongoStoreTestSuite) TestMongoGraphStore_LoadMissing() {
	_, err := m.store.Load(m.ctx, "wf-mongo-never-saved")
	m.True(errors.Is(err, corep.ErrWorkflowNotFound), "want ErrWorkflowNotFound, got %v", err)
}

func (m *MongoStoreTestSuite) TestMongoGraphStore_Delete() {
	snap := sampleSnapshot("wf-mongo-3")
	m.NoError(m.store.Save(m.ctx, snap))

	m.NoError(m.store.Delete(m.ctx, "wf-mongo-3"))

	_, err := m.store.Load(m.ctx, "wf-mongo-3")
	m.True(errors.Is(err, corep.ErrWorkflowNotFound))

	// Deleting again is not an error.
	m.NoError(m.store.Delete(m.ctx, "wf-mongo-3"))
}
