package mongo

import (
	"context"

	"github.com/offbit-ai/zeal-sub007/internal/engine"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
	"go.mongodb.org/mongo-driver/mongo"

	coree "github.com/offbit-ai/zeal-sub007/internal/engine"
	mstore "github.com/offbit-ai/zeal-sub007/mongo/internal/persistence"
	mlog "github.com/offbit-ai/zeal-sub007/mongo/internal/updatelog"
)

// NewMongoEngine returns an Engine that persists workflow snapshots and
// the pending update log in MongoDB, using the default database name
// from the store ("zeal"). ctx bounds the index creation done at setup.
func NewMongoEngine(ctx context.Context, client *mongo.Client) (api.Engine, error) {
	return NewMongoEngineWithSink(ctx, client, nil)
}

// NewMongoEngineWithSink is the Mongo-backed engine constructor that
// accepts a Sink for live record delivery.
func NewMongoEngineWithSink(ctx context.Context, client *mongo.Client, sink api.Sink) (api.Engine, error) {
	log, err := mlog.NewMongoLog(ctx, client, "", coree.DefaultRetention)
	if err != nil {
		return nil, err
	}

	return engine.NewEngineWithConfig(coree.Config{
		Graphs:  mstore.NewMongoGraphStore(client, "", ""),
		Updates: log,
		Sink:    sink,
	}), nil
}
