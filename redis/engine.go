package redis

import (
	"github.com/offbit-ai/zeal-sub007/internal/engine"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
	"github.com/redis/go-redis/v9"

	coree "github.com/offbit-ai/zeal-sub007/internal/engine"
	corep "github.com/offbit-ai/zeal-sub007/redis/internal/persistence"
	coreu "github.com/offbit-ai/zeal-sub007/redis/internal/updatelog"
)

// KeyPrefix namespaces every Redis key written by this package.
const KeyPrefix = "zeal:"

// NewRedisEngine returns an Engine that persists workflow snapshots and
// the pending update log in Redis.
func NewRedisEngine(client *redis.Client) api.Engine {
	return NewRedisEngineWithSink(client, nil)
}

// NewRedisEngineWithSink returns a Redis-backed Engine delivering live
// records to the given Sink.
func NewRedisEngineWithSink(client *redis.Client, sink api.Sink) api.Engine {
	return engine.NewEngineWithConfig(coree.Config{
		Graphs:  corep.NewRedisGraphStore(client, KeyPrefix),
		Updates: coreu.NewRedisLog(client, KeyPrefix, coree.DefaultRetention),
		Sink:    sink,
	})
}
