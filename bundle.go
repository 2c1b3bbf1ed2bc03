package zeal

import (
	"database/sql"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// SyncBundle wires together a durable Engine, a MetricsSink counting
// every committed change record, and whatever extra Sink the caller
// wants fanned out to.
type SyncBundle struct {
	Engine  Engine
	Metrics *MetricsSink
}

// NewSQLiteBundle constructs a durable Engine whose graph snapshots and
// pending update log share the provided SQLite database, with metrics
// collection wired in. The optional sink receives every record
// alongside the metrics counter; pass nil when live fan-out isn't
// needed.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:zeal.db?_journal=WAL")
//	bundle, err := zeal.NewSQLiteBundle(db, nil)
//	// mutate graphs via bundle.Engine
//	// read counters via bundle.Metrics.Snapshot()
func NewSQLiteBundle(db *sql.DB, sink Sink) (*SyncBundle, error) {
	metrics := &api.MetricsSink{}

	eng, err := NewSQLiteEngineWithSink(db, api.NewCompositeSink(metrics, sink))
	if err != nil {
		return nil, err
	}

	return &SyncBundle{
		Engine:  eng,
		Metrics: metrics,
	}, nil
}
