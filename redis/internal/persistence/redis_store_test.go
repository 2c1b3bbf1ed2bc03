package persistence

import (
	"errors"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
)

func (r *RedisStoreTestSuite) TestRedisGraphStore_SaveLoadRoundTrip() {
	snap := sampleSnapshot("wf-redis-1")

	err := r.store.Save(r.ctx, snap)
	r.NoError(err, "Save failed")

	got, err := r.store.Load(r.ctx, "wf-redis-1")
	r.NoError(err, "Load failed")

	r.Equal("wf-redis-1", got.WorkflowID)
	r.Equal(int64(7), got.Sequence)
	r.Len(got.Graphs, 2)

	main := got.Graphs[0]
	r.True(main.IsMain)
	r.Len(main.Nodes, 2)
	r.Equal("Fetch", main.Nodes[0].Title)
	r.Equal("https://example.com", main.Nodes[0].Properties["url"])
	r.Len(main.Nodes[0].Ports, 2)
	r.Equal("out", main.Nodes[0].Ports[1].ID)

	r.Len(main.Connections, 1)
	r.Equal("n1", main.Connections[0].Source.NodeID)
	r.Equal("in", main.Connections[0].Target.PortID)

	r.Len(main.Groups, 1)
	r.Equal([]string{"n1", "n2"}, main.Groups[0].NodeIDs)
	r.Equal(1.25, main.View.Zoom)

	r.Equal("validation", got.Graphs[1].ID)
	r.False(got.Graphs[1].IsMain)
}

func (r *RedisStoreTestSuite) TestRedisGraphStore_SaveOverwrites() {
	snap := sampleSnapshot("wf-redis-2")
	r.NoError(r.store.Save(r.ctx, snap))

	snap.Sequence = 12
	snap.Graphs[0].Nodes[0].Title = "Fetch v2"
	r.NoError(r.store.Save(r.ctx, snap))

	got, err := r.store.Load(r.ctx, "wf-redis-2")
	r.NoError(err)
	r.Equal(int64(12), got.Sequence)
	r.Equal("Fetch v2", got.Graphs[0].Nodes[0].Title)
}

func (r *RedisStoreTestSuite) TestRedisGraphStore_LoadMissing() {
	_, err := r.store.Load(r.ctx, "wf-redis-never-saved")
	r.True(errors.Is(err, corep.ErrWorkflowNotFound), "want ErrWorkflowNotFound, got %v", err)
}

func (r *RedisStoreTestSuite) TestRedisGraphStore_Delete() {
	snap := sampleSnapshot("wf-redis-3")
	r.NoError(r.store.Save(r.ctx, snap))

	r.NoError(r.store.Delete(r.ctx, "wf-redis-3"))

	_, err := r.store.Load(r.ctx, "wf-redis-3")
	r.True(errors.Is(err, corep.ErrWorkflowNotFound))

	// Deleting again is not an error.
	r.NoError(r.store.Delete(r.ctx, "wf-redis-3"))
}
