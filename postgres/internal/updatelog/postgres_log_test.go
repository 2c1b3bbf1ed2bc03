package updatelog

import (
	"errors"
	"time"

	coreu "github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

func (p *PostgresLogTestSuite) TestPostgresLog_AppendQueryRoundTrip() {
	l := p.newLog(coreu.Retention{})
	now := time.Now().UTC()
	p.appendRange(l, "wf-pg-log-1", 1, 3, now)

	got, err := l.Query(p.ctx, "wf-pg-log-1", 0)
	p.NoError(err)
	p.Len(got, 3)

	first := got[0]
	p.Equal("wf-pg-log-1", first.WorkflowID)
	p.Equal(api.MainGraphID, first.GraphID)
	p.Equal(int64(1), first.Sequence)
	p.Equal(api.RecordNodeAdded, first.Type)

	// Payloads come back as generic JSON values.
	payload, ok := first.Payload.(map[string]any)
	p.True(ok, "want map payload, got %T", first.Payload)
	node, ok := payload["node"].(map[string]any)
	p.True(ok)
	p.Equal("n1", node["id"])

	tail, err := l.Query(p.ctx, "wf-pg-log-1", 2)
	p.NoError(err)
	p.Len(tail, 1)
	p.Equal(int64(3), tail[0].Sequence)
}

func (p *PostgresLogTestSuite) TestPostgresLog_UnknownWorkflow() {
	l := p.newLog(coreu.Retention{})

	got, err := l.Query(p.ctx, "wf-pg-log-never-seen", 0)
	p.NoError(err)
	p.Empty(got)
}

func (p *PostgresLogTestSuite) TestPostgresLog_CountRetention() {
	l := p.newLog(coreu.Retention{MaxRecords: 3})
	p.appendRange(l, "wf-pg-log-2", 1, 5, time.Now().UTC())

	// Sequences 1 and 2 were trimmed, so a cursor before them is stale.
	_, err := l.Query(p.ctx, "wf-pg-log-2", 0)
	var capErr *api.CapacityError
	p.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	p.Equal(int64(3), capErr.OldestRetained)
	p.Equal(int64(5), capErr.NewestSequence)

	got, err := l.Query(p.ctx, "wf-pg-log-2", 2)
	p.NoError(err)
	p.Len(got, 3)
	p.Equal(int64(3), got[0].Sequence)
	p.Equal(int64(5), got[2].Sequence)
}

func (p *PostgresLogTestSuite) TestPostgresLog_AgeRetention() {
	l := p.newLog(coreu.Retention{MaxAge: time.Minute})

	// The first two records are stamped an hour in the past, so the
	// third append trims them.
	past := time.Now().Add(-time.Hour).UTC()
	p.appendRange(l, "wf-pg-log-3", 1, 2, past)
	p.NoError(l.Append(p.ctx, rec("wf-pg-log-3", 3, time.Now().UTC())))

	_, err := l.Query(p.ctx, "wf-pg-log-3", 0)
	var capErr *api.CapacityError
	p.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
	p.Equal(int64(3), capErr.OldestRetained)

	got, err := l.Query(p.ctx, "wf-pg-log-3", 2)
	p.NoError(err)
	p.Len(got, 1)
	p.Equal(int64(3), got[0].Sequence)
}

func (p *PostgresLogTestSuite) TestPostgresLog_ClearKeepsCursor() {
	l := p.newLog(coreu.Retention{MaxRecords: 2})
	p.appendRange(l, "wf-pg-log-4", 1, 4, time.Now().UTC())

	p.NoError(l.Clear(p.ctx, "wf-pg-log-4"))

	// Clear discards records but not trim bookkeeping.
	last, err := l.LastSequence(p.ctx, "wf-pg-log-4")
	p.NoError(err)
	p.Equal(int64(4), last)

	_, err = l.Query(p.ctx, "wf-pg-log-4", 0)
	var capErr *api.CapacityError
	p.True(errors.As(err, &capErr), "want CapacityError, got %v", err)

	got, err := l.Query(p.ctx, "wf-pg-log-4", 4)
	p.NoError(err)
	p.Empty(got)
}

func (p *PostgresLogTestSuite) TestPostgresLog_DropForgetsEverything() {
	l := p.newLog(coreu.Retention{MaxRecords: 2})
	p.appendRange(l, "wf-pg-log-5", 1, 4, time.Now().UTC())

	p.NoError(l.Drop(p.ctx, "wf-pg-log-5"))

	last, err := l.LastSequence(p.ctx, "wf-pg-log-5")
	p.NoError(err)
	p.Equal(int64(0), last)

	got, err := l.Query(p.ctx, "wf-pg-log-5", 0)
	p.NoError(err)
	p.Empty(got)
}

func (p *PostgresLogTestSuite) TestPostgresLog_WorkflowsAreIsolated() {
	l := p.newLog(coreu.Retention{MaxRecords: 2})
	now := time.Now().UTC()
	p.appendRange(l, "wf-pg-log-a", 1, 5, now)
	p.appendRange(l, "wf-pg-log-b", 1, 2, now)

	// wf-pg-log-a overflowed its bound, wf-pg-log-b did not.
	got, err := l.Query(p.ctx, "wf-pg-log-b", 0)
	p.NoError(err)
	p.Len(got, 2)

	_, err = l.Query(p.ctx, "wf-pg-log-a", 0)
	var capErr *api.CapacityError
	p.True(errors.As(err, &capErr), "want CapacityError, got %v", err)
}
