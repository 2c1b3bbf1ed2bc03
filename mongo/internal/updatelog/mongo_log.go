package updatelog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// MongoLog is a pending update Log backed by MongoDB. It uses two
// collections: one for the records themselves and one for per-workflow
// cursor bookkeeping (trimmed_through, last_sequence).
type MongoLog struct {
	updates   *mongo.Collection
	cursors   *mongo.Collection
	retention coreu.Retention
	now       func() time.Time
}

// Ensure MongoLog implements Log.
var _ coreu.Log = (*MongoLog)(nil)

// NewMongoLog creates a Mongo-backed pending update log and ensures its
// indexes. dbName defaults to "zeal" if empty.
func NewMongoLog(ctx context.Context, client *mongo.Client, dbName string, retention coreu.Retention) (*MongoLog, error) {
	if dbName == "" {
		dbName = "zeal"
	}
	db := client.Database(dbName)

	l := &MongoLog{
		updates:   db.Collection("pending_updates"),
		cursors:   db.Collection("pending_cursors"),
		retention: retention,
		now:       time.Now,
	}

	_, err := l.updates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "workflow_id", Value: 1},
			{Key: "sequence", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

type mongoUpdateDoc struct {
	WorkflowID string `bson:"workflow_id"`
	Sequence   int64  `bson:"sequence"`
	At         int64  `bson:"at"`
	GraphID    string `bson:"graph_id"`
	Type       string `bson:"type"`
	Payload    []byte `bson:"payload,omitempty"`
}

type mongoCursorDoc struct {
	ID             string `bson:"_id"`
	TrimmedThrough int64  `bson:"trimmed_through"`
	LastSequence   int64  `bson:"last_sequence"`
}

func (l *MongoLog) Append(ctx context.Context, rec api.ChangeRecord) error {
	var payload []byte
	if rec.Payload != nil {
		var err error
		payload, err = json.Marshal(rec.Payload)
		if err != nil {
			return err
		}
	}

	doc := mongoUpdateDoc{
		WorkflowID: rec.WorkflowID,
		Sequence:   rec.Sequence,
		At:         rec.Timestamp.UnixNano(),
		GraphID:    rec.GraphID,
		Type:       string(rec.Type),
		Payload:    payload,
	}
	_, err := l.updates.ReplaceOne(ctx,
		bson.M{"workflow_id": rec.WorkflowID, "sequence": rec.Sequence},
		doc, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}

	_, err = l.cursors.UpdateByID(ctx, rec.WorkflowID, bson.M{
		"$max": bson.M{
			"last_sequence":   rec.Sequence,
			"trimmed_through": int64(0),
		},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return err
	}

	return l.trim(ctx, rec.WorkflowID)
}

// trim enforces the retention bounds and advances trimmed_through past
// every dropped record.
func (l *MongoLog) trim(ctx context.Context, workflowID string) error {
	var cutoffSeq int64

	if l.retention.MaxRecords > 0 {
		// Sequence of the newest record that falls outside the count
		// bound, if any.
		var doc mongoUpdateDoc
		err := l.updates.FindOne(ctx,
			bson.M{"workflow_id": workflowID},
			options.FindOne().
				SetSort(bson.D{{Key: "sequence", Value: -1}}).
				SetSkip(int64(l.retention.MaxRecords)),
		).Decode(&doc)
		switch {
		case err == nil:
			cutoffSeq = doc.Sequence
		case errors.Is(err, mongo.ErrNoDocuments):
		default:
			return err
		}
	}

	if l.retention.MaxAge > 0 {
		cutoffAt := l.now().Add(-l.retention.MaxAge).UnixNano()
		var doc mongoUpdateDoc
		err := l.updates.FindOne(ctx,
			bson.M{"workflow_id": workflowID, "at": bson.M{"$lt": cutoffAt}},
			options.FindOne().SetSort(bson.D{{Key: "sequence", Value: -1}}),
		).Decode(&doc)
		switch {
		case err == nil:
			if doc.Sequence > cutoffSeq {
				cutoffSeq = doc.Sequence
			}
		case errors.Is(err, mongo.ErrNoDocuments):
		default:
			return err
		}
	}

	if cutoffSeq == 0 {
		return nil
	}

	if _, err := l.updates.DeleteMany(ctx, bson.M{
		"workflow_id": workflowID,
		"sequence":    bson.M{"$lte": cutoffSeq},
	}); err != nil {
		return err
	}
	_, err := l.cursors.UpdateByID(ctx, workflowID, bson.M{
		"$max": bson.M{"trimmed_through": cutoffSeq},
	}, options.Update().SetUpsert(true))
	return err
}

func (l *MongoLog) Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	if err := l.trim(ctx, workflowID); err != nil {
		return nil, err
	}

	var cursor mongoCursorDoc
	err := l.cursors.FindOne(ctx, bson.M{"_id": workflowID}).Decode(&cursor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sinceSequence < cursor.TrimmedThrough {
		return nil, &api.CapacityError{
			WorkflowID:     workflowID,
			SinceSequence:  sinceSequence,
			OldestRetained: cursor.TrimmedThrough + 1,
			NewestSequence: cursor.LastSequence,
		}
	}

	cur, err := l.updates.Find(ctx,
		bson.M{"workflow_id": workflowID, "sequence": bson.M{"$gt": sinceSequence}},
		options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []api.ChangeRecord
	for cur.Next(ctx) {
		var doc mongoUpdateDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		var payload any
		if len(doc.Payload) > 0 {
			if err := json.Unmarshal(doc.Payload, &payload); err != nil {
				return nil, err
			}
		}
		out = append(out, api.ChangeRecord{
			WorkflowID: workflowID,
			GraphID:    doc.GraphID,
			Sequence:   doc.Sequence,
			Timestamp:  time.Unix(0, doc.At),
			Type:       api.RecordType(doc.Type),
			Payload:    payload,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *MongoLog) Clear(ctx context.Context, workflowID string) error {
	_, err := l.updates.DeleteMany(ctx, bson.M{"workflow_id": workflowID})
	return err
}

func (l *MongoLog) Drop(ctx context.Context, workflowID string) error {
	if _, err := l.updates.DeleteMany(ctx, bson.M{"workflow_id": workflowID}); err != nil {
		return err
	}
	_, err := l.cursors.DeleteOne(ctx, bson.M{"_id": workflowID})
	return err
}

func (l *MongoLog) LastSequence(ctx context.Context, workflowID string) (int64, error) {
	var cursor mongoCursorDoc
	err := l.cursors.FindOne(ctx, bson.M{"_id": workflowID}).Decode(&cursor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cursor.LastSequence, nil
}
