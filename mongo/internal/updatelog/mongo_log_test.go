package updatelog

import (
	"errors"
	"time"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

func (m *MongoLogTestSuite) TestMongoLog_AppendQueryRoundTrip() {
	l := m.newLog(coreu.Retention{})
	now := time.Now().UTC()
	m.appendRange(l, "wf-mongo-log-1", 1, 3, now)

	got, err := l.Query(m.ctx, "wf-mongo-log-1", 0)
	m.NoError(err)
	m.Len(got, 3)

	first := got[0]
	m.Equal("wf-mongo-log-1", first.WorkflowID)
	m.Equal(api.MainGraphID, first.GraphID)
	m.Equal(int64(1), first.Sequence)
	m.Equal(api.RecordNodeAdded, first.Type)

	// Payloads come back as generic JSON values.
	payload, ok := first.Payload.(map[string]any)
	m.True(ok, "want map payload, got %T", first.Payload)
	node, ok := payload["node"].(map[string]any)
	m.True(ok)
	m.Equal("n1", node["id"])

	tail, err := l.Query(m.ctx, "wf-mongo-log-1", 2)
	m.NoError(err)
	m.Len(tail, 1)
	m.Equal(int64(3), tail[0].Sequence)
}

func (m *MongoLogTestSuite) TestMongoLog_UnknownWorkflow() {
	l := m.newLog(coreu.Retention{})

	got, err := l.Query(m.ctx, "wf-mongo-log-never-seen", 0)
	m.NoError(err)
	m.Empty(got)
}

func (m *MongoLogTestSuite) TestMongoLog_CountRetention() {
	l := m.newLog(coreu.Retention{MaxRecords: 3})
	m.appendRange(l, "wf-mongo-log-2", 1, 5, time.Now().UTC())

	// Sequences 1 and 2 were trimmed, so a cursor before them is stale.
	_, err := l.Query(m.ctx, "wf-mongo-log-2", 0)
	var capErr *api.CapacityError
	m.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	m.Equal(int64(3), capErr.OldestRetained)
	m.Equal(int64(5), capErr.NewestSequence)

	got, err := l.Query(m.ctx, "wf-mongo-log-2", 2)
	m.NoError(err)
	m.Len(got, 3)
	m.Equal(int64(3), got[0].Sequence)
	m.Equal(int64(5), got[2].Sequence)
}

func (m *MongoLogTestSuite) TestMongoLog_AgeRetention() {
	l := m.newLog(coreu.Retention{MaxAge: time.Minute})

	// The first two records are stamped an hour in the past, so the
	// third append trims them.
	past := time.Now().Add(-time.Hour).UTC()
	m.appendRange(l, "wf-mongo-log-3", 1, 2, past)
	m.NoError(l.Append(m.ctx, rec("wf-mongo-log-3", 3, time.Now().UTC())))

	_, err := l.Query(m.ctx, "wf-mongo-log-3", 0)
	var capErr *api.CapacityError
	m.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	m.Equal(int64(3), capErr.OldestRetained)

	got, err := l.Query(m.ctx, "wf-mongo-log-3", 2)
	m.NoError(err)
	m.Len(got, 1)
	m.Equal(int64(3), got[0].Sequence)
}

func (m *MongoLogTestSuite) TestMongoLog_ClearKeepsCursor() {
	l := m.newLog(coreu.Retention{MaxRecords: 2})
	m.appendRange(l, "wf-mongo-log-4", 1, 4, time.Now().UTC())

	m.NoError(l.Clear(m.ctx, "wf-mongo-log-4"))

	// Clear discards records but not trim bookkeeping.
	last, err := l.LastSequence(m.ctx, "wf-mongo-log-4")
	m.NoError(err)
	m.Equal(int64(4), last)

	_, err = l.Query(m.ctx, "wf-mongo-log-4", 0)
	var capErr *api.CapacityError
	m.True(errors.As(err, &capErr), "want CapacityError, got %v", err)

	got, err := l.Query(m.ctx, "wf-mongo-log-4", 4)
	m.NoError(err)
	m.Empty(got)
}

func (m *MongoLogTestSuite) TestMongoLog_DropForgetsEverything() {
	l := m.newLog(coreu.Retention{MaxRecords: 2})
	m.appendRange(l, "wf-mongo-log-5", 1, 4, time.Now().UTC())

	m.NoError(l.Drop(m.ctx, "wf-mongo-log-5"))

	last, err := l.LastSequence(m.ctx, "wf-mongo-log-5")
	m.NoError(err)
	m.Equal(int64(0), last)

	got, err := l.Query(m.ctx, "wf-mongo-log-5", 0)
	m.NoError(err)
	m.Empty(got)
}

func (m *MongoLogTestSuite) TestMongoLog_WorkflowsAreIsolated() {
	l := m.newLog(coreu.Retention{MaxRecords: 2})
	now := time.Now().UTC()
	m.appendRange(l, "wf-mongo-log-a", 1, 5, now)
	m.appendRange(l, "wf-mongo-log-b", 1, 2, now)

	// wf-mongo-log-a overflowed its bound, wf-mongo-log-b did not.
	got, err := l.Query(m.ctx, "wf-mongo-log-b", 0)
	m.NoError(err)
	m.Len(got, 2)

	_, err = l.Query(m.ctx, "wf-mongo-log-a", 0)
	var capErr *api.CapacityError
	m.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
}
