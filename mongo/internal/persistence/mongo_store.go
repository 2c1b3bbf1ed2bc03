package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	corep "github.com/offbit-ai/zeal-sub007/internal/persistence"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// MongoGraphStore is a GraphStore backed by MongoDB.
type MongoGraphStore struct {
	coll *mongo.Collection
}

// Ensure it implements GraphStore.
var _ corep.GraphStore = (*MongoGraphStore)(nil)

// NewMongoGraphStore creates a Mongo-backed graph store.
// dbName defaults to "zeal" if empty, collName defaults to
// "workflow_snapshots".
func NewMongoGraphStore(client *mongo.Client, dbName, collName string) *MongoGraphStore {
	if dbName == "" {
		dbName = "zeal"
	}
	if collName == "" {
		collName = "workflow_snapshots"
	}

	return &MongoGraphStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoSnapshotDoc struct {
	ID       string `bson:"_id"`
	Sequence int64  `bson:"sequence"`
	Graphs   []byte `bson:"graphs"`
}

func (s *MongoGraphStore) Load(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	var doc mongoSnapshotDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": workflowID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, corep.ErrWorkflowNotFound
		}
		return nil, err
	}

	graphs, err := corep.DecodeGraphs(doc.Graphs)
	if err != nil {
		return nil, err
	}
	return &api.Snapshot{
		WorkflowID: workflowID,
		Graphs:     graphs,
		Sequence:   doc.Sequence,
	}, nil
}

func (s *MongoGraphStore) Save(ctx context.Context, snap *api.Snapshot) error {
	blob, err := corep.EncodeGraphs(snap.Graphs)
	if err != nil {
		return err
	}

	doc := mongoSnapshotDoc{
		ID:       snap.WorkflowID,
		Sequence: snap.Sequence,
		Graphs:   blob,
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": snap.WorkflowID}, doc,
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoGraphStore) Delete(ctx context.Context, workflowID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": workflowID})
	return err
}
