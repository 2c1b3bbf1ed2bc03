package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// RedisGraphStore is a GraphStore backed by Redis. It uses a simple
// key structure:
//
//	<prefix>snap:<workflowID> => JSON-encoded snapshot
//
// The snapshot is one value per workflow: Save replaces it wholesale,
// which matches the engine's flush-on-checkpoint usage.
type RedisGraphStore struct {
	client *redis.Client
	prefix string
}

var _ corep.GraphStore = (*RedisGraphStore)(nil)

type redisSnapshotPayload struct {
	Sequence int64        `json:"sequence"`
	Graphs   []*api.Graph `json:"graphs"`
}

// NewRedisGraphStore creates a RedisGraphStore.
// prefix is optional but recommended (e.g. "zeal:").
func NewRedisGraphStore(client *redis.Client, prefix string) *RedisGraphStore {
	if prefix == "" {
		prefix = "zeal:"
	}
	return &RedisGraphStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisGraphStore) keySnapshot(workflowID string) string {
	return r.prefix + "snap:" + workflowID
}

func (r *RedisGraphStore) Load(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	data, err := r.client.Get(ctx, r.keySnapshot(workflowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, corep.ErrWorkflowNotFound
	}
	if err != nil {
		return nil, err
	}

	var payload redisSnapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &api.Snapshot{
		WorkflowID: workflowID,
		Graphs:     payload.Graphs,
		Sequence:   payload.Sequence,
	}, nil
}

func (r *RedisGraphStore) Save(ctx context.Context, snap *api.Snapshot) error {
	data, err := json.Marshal(redisSnapshotPayload{
		Sequence: snap.Sequence,
		Graphs:   snap.Graphs,
	})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keySnapshot(snap.WorkflowID), data, 0).Err()
}

func (r *RedisGraphStore) Delete(ctx context.Context, workflowID string) error {
	return r.client.Del(ctx, r.keySnapshot(workflowID)).Err()
}
