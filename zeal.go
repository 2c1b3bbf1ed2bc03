package zeal

import (
	"context"
	"database/sql"

	"github.com/offbit-ai/zeal-sub007/internal/engine"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine           = api.Engine
	Node             = api.Node
	NodeSpec         = api.NodeSpec
	Connection       = api.Connection
	Group            = api.Group
	Graph            = api.Graph
	Port             = api.Port
	PortRef          = api.PortRef
	PortDirection    = api.PortDirection
	Position         = api.Position
	ViewState        = api.ViewState
	Snapshot         = api.Snapshot
	ChangeRecord     = api.ChangeRecord
	RecordType       = api.RecordType
	NodeTemplate     = api.NodeTemplate
	TemplateResolver = api.TemplateResolver
	StaticTemplates  = api.StaticTemplates
	Sink             = api.Sink
	LoggingSink      = api.LoggingSink
	MetricsSink      = api.MetricsSink
	MetricsSnapshot  = api.MetricsSnapshot
	ChannelSink      = api.ChannelSink
	NoopSink         = api.NoopSink
	CompositeSink    = api.CompositeSink
)

// Re-export request types.

type (
	AddNodeRequest              = api.AddNodeRequest
	AddNodesRequest             = api.AddNodesRequest
	RemoveNodeRequest           = api.RemoveNodeRequest
	ConnectNodesRequest         = api.ConnectNodesRequest
	RemoveConnectionRequest     = api.RemoveConnectionRequest
	UpdateNodePropertiesRequest = api.UpdateNodePropertiesRequest
	UpdateNodePositionRequest   = api.UpdateNodePositionRequest
	CreateGroupRequest          = api.CreateGroupRequest
	UpdateGroupRequest          = api.UpdateGroupRequest
	RemoveGroupRequest          = api.RemoveGroupRequest
	AddGraphRequest             = api.AddGraphRequest
	RemoveGraphRequest          = api.RemoveGraphRequest
	SetGraphViewRequest         = api.SetGraphViewRequest
)

// Re-export the error taxonomy.

type (
	ValidationError           = api.ValidationError
	NotFoundError             = api.NotFoundError
	ConflictError             = api.ConflictError
	ReferentialIntegrityError = api.ReferentialIntegrityError
	CapacityError             = api.CapacityError
)

// Re-export common sink helpers.

var (
	NewLoggingSink     = api.NewLoggingSink
	NewCompositeSink   = api.NewCompositeSink
	NewChannelSink     = api.NewChannelSink
	NewStaticTemplates = api.NewStaticTemplates
)

// Re-export port directions and the main graph ID for convenience.

const (
	PortInput   = api.PortInput
	PortOutput  = api.PortOutput
	MainGraphID = api.MainGraphID
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithSink returns an in-memory Engine delivering live
// change records to the given Sink.
func NewInMemoryEngineWithSink(sink Sink) Engine {
	return engine.NewInMemoryEngineWithSink(sink)
}

// NewSQLiteEngine returns an Engine that persists workflow graphs and
// the pending update log in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithSink returns a SQLite-backed Engine with the given Sink.
func NewSQLiteEngineWithSink(db *sql.DB, sink Sink) (Engine, error) {
	return engine.NewSQLiteEngineWithSink(db, sink)
}

// Convenience helpers that just forward to the underlying Engine.

// AddNode adds a single node to a workflow graph.
func AddNode(ctx context.Context, eng Engine, req AddNodeRequest) (*Node, error) {
	return eng.AddNode(ctx, req)
}

// ConnectNodes connects an output port to an input port.
func ConnectNodes(ctx context.Context, eng Engine, req ConnectNodesRequest) (*Connection, error) {
	return eng.ConnectNodes(ctx, req)
}

// GetState fetches a consistent snapshot of a workflow's graphs.
func GetState(ctx context.Context, eng Engine, workflowID string) (*Snapshot, error) {
	return eng.GetState(ctx, workflowID)
}

// GetPendingUpdates returns the change records committed after
// sinceSequence, or a CapacityError when the log no longer retains them.
func GetPendingUpdates(ctx context.Context, eng Engine, workflowID string, sinceSequence int64) ([]ChangeRecord, error) {
	return eng.GetPendingUpdates(ctx, workflowID, sinceSequence)
}

// FlushWorkflow forces the workflow's current state to persistence.
//
// It is typically called before a planned shutdown:
//
//	err := zeal.FlushWorkflow(ctx, engine, "wf-1")
func FlushWorkflow(ctx context.Context, eng Engine, workflowID string) error {
	return eng.FlushWorkflow(ctx, workflowID)
}
