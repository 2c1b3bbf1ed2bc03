package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Sink receives every committed ChangeRecord, in commit order, as soon
// as it is produced. It is the engine's only contract with a live
// transport: delivery is best-effort, and retries or backpressure are
// the transport's responsibility.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay the workflow's actor.
type Sink interface {
	Deliver(ctx context.Context, rec ChangeRecord)
}

// NoopSink discards all records. It is used as the default when no
// sink is configured.
type NoopSink struct{}

func (NoopSink) Deliver(ctx context.Context, rec ChangeRecord) {}

// CompositeSink fans out each record to multiple sinks.
type CompositeSink struct {
	sinks []Sink
}

// NewCompositeSink creates a Sink that forwards every record to each
// non-nil sink in sinks.
func NewCompositeSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return NoopSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeSink{sinks: filtered}
}

func (c *CompositeSink) Deliver(ctx context.Context, rec ChangeRecord) {
	for _, s := range c.sinks {
		s.Deliver(ctx, rec)
	}
}

// LoggingSink writes structured logs for every record using log/slog.
type LoggingSink struct {
	Logger *slog.Logger
}

// NewLoggingSink creates a Sink that logs each committed record with
// the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{Logger: logger}
}

func (s *LoggingSink) Deliver(ctx context.Context, rec ChangeRecord) {
	s.Logger.DebugContext(ctx, "change_committed",
		slog.String("workflow", rec.WorkflowID),
		slog.String("graph", rec.GraphID),
		slog.Int64("sequence", rec.Sequence),
		slog.String("type", string(rec.Type)),
	)
}

// MetricsSink counts delivered records by entity kind. It can be
// combined with other sinks via NewCompositeSink.
type MetricsSink struct {
	delivered         atomic.Int64
	nodeRecords       atomic.Int64
	connectionRecords atomic.Int64
	groupRecords      atomic.Int64
	graphRecords      atomic.Int64
}

// MetricsSnapshot is an immutable snapshot of a MetricsSink.
type MetricsSnapshot struct {
	Delivered         int64
	NodeRecords       int64
	ConnectionRecords int64
	GroupRecords      int64
	GraphRecords      int64
}

func (m *MetricsSink) Deliver(ctx context.Context, rec ChangeRecord) {
	m.delivered.Add(1)
	switch rec.Type {
	case RecordNodeAdded, RecordNodeUpdated, RecordNodeDeleted:
		m.nodeRecords.Add(1)
	case RecordConnectionAdded, RecordConnectionDeleted:
		m.connectionRecords.Add(1)
	case RecordGroupCreated, RecordGroupUpdated, RecordGroupDeleted:
		m.groupRecords.Add(1)
	case RecordGraphAdded, RecordGraphDeleted, RecordGraphViewUpdated:
		m.graphRecords.Add(1)
	}
}

// Snapshot returns the current counter values.
func (m *MetricsSink) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Delivered:         m.delivered.Load(),
		NodeRecords:       m.nodeRecords.Load(),
		ConnectionRecords: m.connectionRecords.Load(),
		GroupRecords:      m.groupRecords.Load(),
		GraphRecords:      m.graphRecords.Load(),
	}
}

// ChannelSink buffers records on a channel for a transport goroutine to
// drain. When the buffer is full the record is dropped and counted;
// a consumer that lags past the buffer is expected to resync from a
// snapshot, the same way a stale poller does.
type ChannelSink struct {
	ch      chan ChangeRecord
	dropped atomic.Int64
}

// NewChannelSink creates a ChannelSink with the given buffer size.
// A non-positive size defaults to 64.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 64
	}
	return &ChannelSink{ch: make(chan ChangeRecord, size)}
}

func (s *ChannelSink) Deliver(ctx context.Context, rec ChangeRecord) {
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

// Records returns the channel the transport should drain.
func (s *ChannelSink) Records() <-chan ChangeRecord {
	return s.ch
}

// Dropped reports how many records were discarded because the buffer
// was full.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}
