package persistence

import (
	"context"
	"sync"

	"github.com/offbit-ai/zeal-sub007/internal/graph"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe GraphStore backed by a
// map. Snapshots are deep-copied on the way in and out so the store
// never shares mutable graph state with an actor.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*api.Snapshot
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[string]*api.Snapshot),
	}
}

var _ GraphStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Load(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[workflowID]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return copySnapshot(snap), nil
}

func (s *InMemoryStore) Save(ctx context.Context, snap *api.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.WorkflowID] = copySnapshot(snap)
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, workflowID)
	return nil
}

func copySnapshot(snap *api.Snapshot) *api.Snapshot {
	cp := &api.Snapshot{
		WorkflowID: snap.WorkflowID,
		Sequence:   snap.Sequence,
		Graphs:     make([]*api.Graph, len(snap.Graphs)),
	}
	for i, g := range snap.Graphs {
		cp.Graphs[i] = graph.CloneGraph(g)
	}
	return cp
}
