package updatelog

import (
	"errors"
	"time"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

func (r *RedisLogTestSuite) TestRedisLog_AppendQueryRoundTrip() {
	l := r.newLog(coreu.Retention{})
	now := time.Now().UTC()
	r.appendRange(l, "wf-log-1", 1, 3, now)

	got, err := l.Query(r.ctx, "wf-log-1", 0)
	r.NoError(err)
	r.Len(got, 3)

	first := got[0]
	r.Equal("wf-log-1", first.WorkflowID)
	r.Equal(api.MainGraphID, first.GraphID)
	r.Equal(int64(1), first.Sequence)
	r.Equal(api.RecordNodeAdded, first.Type)

	// Payloads come back as generic JSON values.
	payload, ok := first.Payload.(map[string]any)
	r.True(ok, "want map payload, got %T", first.Payload)
	node, ok := payload["node"].(map[string]any)
	r.True(ok)
	r.Equal("n1", node["id"])

	tail, err := l.Query(r.ctx, "wf-log-1", 2)
	r.NoError(err)
	r.Len(tail, 1)
	r.Equal(int64(3), tail[0].Sequence)
}

func (r *RedisLogTestSuite) TestRedisLog_UnknownWorkflow() {
	l := r.newLog(coreu.Retention{})

	got, err := l.Query(r.ctx, "wf-log-never-seen", 0)
	r.NoError(err)
	r.Empty(got)
}

func (r *RedisLogTestSuite) TestRedisLog_CountRetention() {
	l := r.newLog(coreu.Retention{MaxRecords: 3})
	r.appendRange(l, "wf-log-2", 1, 5, time.Now().UTC())

	// Sequences 1 and 2 were trimmed, so a cursor before them is stale.
	_, err := l.Query(r.ctx, "wf-log-2", 0)
	var capErr *api.CapacityError
	r.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	r.Equal(int64(3), capErr.OldestRetained)
	r.Equal(int64(5), capErr.NewestSequence)

	got, err := l.Query(r.ctx, "wf-log-2", 2)
	r.NoError(err)
	r.Len(got, 3)
	r.Equal(int64(3), got[0].Sequence)
	r.Equal(int64(5), got[2].Sequence)
}

func (r *RedisLogTestSuite) TestRedisLog_AgeRetention() {
	l := r.newLog(coreu.Retention{MaxAge: time.Minute})

	// Stamp the first two appends an hour in the past, then let the
	// next append trigger the age trim.
	past := time.Now().Add(-time.Hour)
	l.now = func() time.Time { return past }
	r.appendRange(l, "wf-log-3", 1, 2, past)

	l.now = time.Now
	r.NoError(l.Append(r.ctx, rec("wf-log-3", 3, time.Now().UTC())))

	_, err := l.Query(r.ctx, "wf-log-3", 0)
	var capErr *api.CapacityError
	r.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	r.Equal(int64(3), capErr.OldestRetained)

	got, err := l.Query(r.ctx, "wf-log-3", 2)
	r.NoError(err)
	r.Len(got, 1)
	r.Equal(int64(3), got[0].Sequence)
}

func (r *RedisLogTestSuite) TestRedisLog_ClearKeepsCursor() {
	l := r.newLog(coreu.Retention{MaxRecords: 2})
	r.appendRange(l, "wf-log-4", 1, 4, time.Now().UTC())

	r.NoError(l.Clear(r.ctx, "wf-log-4"))

	// Clear discards records but not trim bookkeeping.
	last, err := l.LastSequence(r.ctx, "wf-log-4")
	r.NoError(err)
	r.Equal(int64(4), last)

	_, err = l.Query(r.ctx, "wf-log-4", 0)
	var capErr *api.CapacityError
	r.True(errors.As(err, &capErr), "want CapacityError, got %v", err)

	got, err := l.Query(r.ctx, "wf-log-4", 4)
	r.NoError(err)
	r.Empty(got)
}

func (r *RedisLogTestSuite) TestRedisLog_DropForgetsEverything() {
	l := r.newLog(coreu.Retention{MaxRecords: 2})
	r.appendRange(l, "wf-log-5", 1, 4, time.Now().UTC())

	r.NoError(l.Drop(r.ctx, "wf-log-5"))

	last, err := l.LastSequence(r.ctx, "wf-log-5")
	r.NoError(err)
	r.Equal(int64(0), last)

	got, err := l.Query(r.ctx, "wf-log-5", 0)
	r.NoError(err)
	r.Empty(got)
}

func (r *RedisLogTestSuite) TestRedisLog_WorkflowsAreIsolated() {
	l := r.newLog(coreu.Retention{MaxRecords: 2})
	now := time.Now().UTC()
	r.appendRange(l, "wf-log-a", 1, 5, now)
	r.appendRange(l, "wf-log-b", 1, 2, now)

	// wf-log-a overflowed its bound, wf-log-b did not.
	got, err := l.Query(r.ctx, "wf-log-b", 0)
	r.NoError(err)
	r.Len(got, 2)

	_, err = l.Query(r.ctx, "wf-log-a", 0)
	var capErr *api.CapacityError
	r.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
}
