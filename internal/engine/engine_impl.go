package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/offbit-ai/zeal-sub007/internal/graph"
	"github.com/offbit-ai/zeal-sub007/internal/persistence"
	"github.com/offbit-ai/zeal-sub007/internal/updatelog"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// DefaultIdleTimeout is how long an actor with an empty mailbox stays
// resident before it flushes and evicts itself.
const DefaultIdleTimeout = 5 * time.Minute

const (
	defaultMailboxSize = 64
	defaultShardCount  = 16
)

// DefaultRetention bounds the pending update log when the caller does
// not provide a policy: a polling client that falls more than 500
// records or 10 minutes behind must resync from a snapshot.
var DefaultRetention = updatelog.Retention{
	MaxRecords: 500,
	MaxAge:     10 * time.Minute,
}

// Config describes how to construct an engineImpl. Only used inside
// this package; external callers use the constructor functions.
type Config struct {
	// Graphs is the persistence boundary. Required.
	Graphs persistence.GraphStore

	// Updates is the pending update log. Required.
	Updates updatelog.Log

	// Sink receives every committed change record. Defaults to NoopSink.
	Sink api.Sink

	// Templates, when set, is consulted for every node spec that names
	// a template. When nil the catalog check is skipped entirely.
	Templates api.TemplateResolver

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// IdleTimeout defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration

	// MailboxSize is the per-actor request queue depth. Defaults to 64.
	MailboxSize int

	// Shards is the actor registry shard count. Defaults to 16.
	Shards int
}

type engineImpl struct {
	graphs    persistence.GraphStore
	updates   updatelog.Log
	sink      api.Sink
	templates api.TemplateResolver
	logger    *slog.Logger

	registry    *registry
	idleTimeout time.Duration
	mailboxSize int
}

var _ api.Engine = (*engineImpl)(nil)

// NewInMemoryEngine returns an Engine backed entirely by in-memory
// stores, with the default retention policy.
func NewInMemoryEngine() api.Engine {
	return NewInMemoryEngineWithSink(nil)
}

// NewInMemoryEngineWithSink returns an in-memory Engine delivering
// live records to the given sink.
func NewInMemoryEngineWithSink(sink api.Sink) api.Engine {
	return NewEngineWithConfig(Config{
		Graphs:  persistence.NewInMemoryStore(),
		Updates: updatelog.NewInMemoryLog(DefaultRetention),
		Sink:    sink,
	})
}

// NewSQLiteEngine returns an Engine that persists workflow snapshots
// and the pending update log in a SQLite database.
func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithSink(db, nil)
}

// NewSQLiteEngineWithSink returns a SQLite-backed Engine delivering
// live records to the given sink.
func NewSQLiteEngineWithSink(db *sql.DB, sink api.Sink) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	log, err := updatelog.NewSQLiteLog(db, DefaultRetention)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Graphs:  store,
		Updates: log,
		Sink:    sink,
	}), nil
}

// NewEngineWithConfig creates a new Engine using the given
// configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	if cfg.Sink == nil {
		cfg.Sink = api.NoopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShardCount
	}
	return &engineImpl{
		graphs:      cfg.Graphs,
		updates:     cfg.Updates,
		sink:        cfg.Sink,
		templates:   cfg.Templates,
		logger:      cfg.Logger,
		registry:    newRegistry(cfg.Shards),
		idleTimeout: cfg.IdleTimeout,
		mailboxSize: cfg.MailboxSize,
	}
}

func (e *engineImpl) spawn(workflowID string) *actor {
	return newActor(workflowID, e)
}

// do routes op to the workflow's actor, retrying when the call races
// with an eviction.
func (e *engineImpl) do(ctx context.Context, workflowID string, op opFunc) (any, error) {
	if workflowID == "" {
		return nil, &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	for {
		a := e.registry.get(workflowID, e.spawn)
		v, err := a.call(ctx, op)
		if errors.Is(err, errActorClosed) {
			continue
		}
		return v, err
	}
}

// resolveGraph looks the graph up inside the actor, defaulting to the
// main graph for an empty ID.
func resolveGraph(st *actorState, graphID string) (*api.Graph, error) {
	g, ok := st.doc.Graph(graphID)
	if !ok {
		return nil, &api.NotFoundError{Kind: "graph", ID: graphID}
	}
	return g, nil
}

// buildNode materializes a node from its spec, applying the template's
// ports and property defaults. It runs on the caller's goroutine so a
// slow template catalog never stalls the actor.
func (e *engineImpl) buildNode(ctx context.Context, spec api.NodeSpec) (*api.Node, error) {
	node := &api.Node{
		ID:         spec.NodeID,
		TemplateID: spec.TemplateID,
		Title:      spec.Title,
		Position:   spec.Position,
	}
	if node.ID == "" {
		node.ID = api.NewID()
	}

	if spec.TemplateID != "" && e.templates != nil {
		tmpl, ok, err := e.templates.Resolve(ctx, spec.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("resolve template %s: %w", spec.TemplateID, err)
		}
		if !ok {
			return nil, &api.ValidationError{Field: "templateId", Reason: "unknown template: " + spec.TemplateID}
		}
		if node.Title == "" {
			node.Title = tmpl.Title
		}
		node.Ports = append([]api.Port(nil), tmpl.Ports...)
		if len(tmpl.Properties) > 0 {
			node.Properties = make(map[string]any, len(tmpl.Properties))
			for k, v := range tmpl.Properties {
				node.Properties[k] = v
			}
		}
	}

	if len(spec.Ports) > 0 {
		node.Ports = append([]api.Port(nil), spec.Ports...)
	}
	if len(spec.Properties) > 0 {
		if node.Properties == nil {
			node.Properties = make(map[string]any, len(spec.Properties))
		}
		for k, v := range spec.Properties {
			node.Properties[k] = v
		}
	}
	if len(spec.Metadata) > 0 {
		node.Metadata = make(map[string]any, len(spec.Metadata))
		for k, v := range spec.Metadata {
			node.Metadata[k] = v
		}
	}
	return node, nil
}

func (e *engineImpl) AddNode(ctx context.Context, req api.AddNodeRequest) (*api.Node, error) {
	node, err := e.buildNode(ctx, req.NodeSpec)
	if err != nil {
		return nil, err
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		if err := graph.AddNode(g, node); err != nil {
			return nil, nil, err
		}
		return graph.CloneNode(node), []draft{{
			graphID: g.ID,
			typ:     api.RecordNodeAdded,
			payload: api.NodeAddedPayload{Node: graph.CloneNode(node)},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Node), nil
}

func (e *engineImpl) AddNodes(ctx context.Context, req api.AddNodesRequest) ([]*api.Node, error) {
	if len(req.Nodes) == 0 {
		return nil, &api.ValidationError{Field: "nodes", Reason: "batch must not be empty"}
	}

	nodes := make([]*api.Node, len(req.Nodes))
	for i, spec := range req.Nodes {
		node, err := e.buildNode(ctx, spec)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}

		// Validate the whole batch before touching the graph so it
		// commits all-or-nothing.
		seen := make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			if graph.FindNode(g, n.ID) != nil {
				return nil, nil, &api.ConflictError{Reason: "node id already exists", NodeID: n.ID}
			}
			if _, dup := seen[n.ID]; dup {
				return nil, nil, &api.ConflictError{Reason: "duplicate node id in batch", NodeID: n.ID}
			}
			seen[n.ID] = struct{}{}
		}

		out := make([]*api.Node, len(nodes))
		drafts := make([]draft, len(nodes))
		for i, n := range nodes {
			g.Nodes = append(g.Nodes, n)
			out[i] = graph.CloneNode(n)
			drafts[i] = draft{
				graphID: g.ID,
				typ:     api.RecordNodeAdded,
				payload: api.NodeAddedPayload{Node: graph.CloneNode(n)},
			}
		}
		return out, drafts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*api.Node), nil
}

func (e *engineImpl) RemoveNode(ctx context.Context, req api.RemoveNodeRequest) error {
	if req.NodeID == "" {
		return &api.ValidationError{Field: "nodeId", Reason: "required"}
	}

	_, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		_, removedConns, prunedGroups, err := graph.RemoveNode(g, req.NodeID)
		if err != nil {
			return nil, nil, err
		}
		return nil, []draft{{
			graphID: g.ID,
			typ:     api.RecordNodeDeleted,
			payload: api.NodeDeletedPayload{
				NodeID:               req.NodeID,
				RemovedConnectionIDs: removedConns,
				PrunedGroupIDs:       prunedGroups,
			},
		}}, nil
	})
	return err
}

func (e *engineImpl) ConnectNodes(ctx context.Context, req api.ConnectNodesRequest) (*api.Connection, error) {
	conn := &api.Connection{
		ID:     req.ConnectionID,
		Source: req.Source,
		Target: req.Target,
	}
	if conn.ID == "" {
		conn.ID = api.NewID()
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		if err := graph.Connect(g, conn); err != nil {
			return nil, nil, err
		}
		out := *conn
		payload := *conn
		return &out, []draft{{
			graphID: g.ID,
			typ:     api.RecordConnectionAdded,
			payload: api.ConnectionAddedPayload{Connection: &payload},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Connection), nil
}

func (e *engineImpl) RemoveConnection(ctx context.Context, req api.RemoveConnectionRequest) error {
	if req.ConnectionID == "" {
		return &api.ValidationError{Field: "connectionId", Reason: "required"}
	}

	_, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		if err := graph.RemoveConnection(g, req.ConnectionID); err != nil {
			return nil, nil, err
		}
		return nil, []draft{{
			graphID: g.ID,
			typ:     api.RecordConnectionDeleted,
			payload: api.ConnectionDeletedPayload{ConnectionID: req.ConnectionID},
		}}, nil
	})
	return err
}

func (e *engineImpl) UpdateNodeProperties(ctx context.Context, req api.UpdateNodePropertiesRequest) (*api.Node, error) {
	if req.NodeID == "" {
		return nil, &api.ValidationError{Field: "nodeId", Reason: "required"}
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		node, err := graph.UpdateProperties(g, req.NodeID, req.Properties)
		if err != nil {
			return nil, nil, err
		}
		changed := make(map[string]any, len(req.Properties))
		for k, v := range req.Properties {
			changed[k] = v
		}
		return graph.CloneNode(node), []draft{{
			graphID: g.ID,
			typ:     api.RecordNodeUpdated,
			payload: api.NodeUpdatedPayload{NodeID: req.NodeID, Properties: changed},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Node), nil
}

func (e *engineImpl) UpdateNodePosition(ctx context.Context, req api.UpdateNodePositionRequest) (*api.Node, error) {
	if req.NodeID == "" {
		return nil, &api.ValidationError{Field: "nodeId", Reason: "required"}
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		node, err := graph.UpdatePosition(g, req.NodeID, req.Position)
		if err != nil {
			return nil, nil, err
		}
		pos := req.Position
		return graph.CloneNode(node), []draft{{
			graphID: g.ID,
			typ:     api.RecordNodeUpdated,
			payload: api.NodeUpdatedPayload{NodeID: req.NodeID, Position: &pos},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Node), nil
}

func (e *engineImpl) CreateGroup(ctx context.Context, req api.CreateGroupRequest) (*api.Group, error) {
	group := &api.Group{
		ID:          req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		Color:       req.Color,
		NodeIDs:     append([]string(nil), req.NodeIDs...),
	}
	if group.ID == "" {
		group.ID = api.NewID()
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		if err := graph.CreateGroup(g, group); err != nil {
			return nil, nil, err
		}
		return graph.CloneGroup(group), []draft{{
			graphID: g.ID,
			typ:     api.RecordGroupCreated,
			payload: api.GroupPayload{Group: graph.CloneGroup(group)},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Group), nil
}

func (e *engineImpl) UpdateGroup(ctx context.Context, req api.UpdateGroupRequest) (*api.Group, error) {
	if req.GroupID == "" {
		return nil, &api.ValidationError{Field: "groupId", Reason: "required"}
	}

	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		group, err := graph.UpdateGroup(g, req)
		if err != nil {
			return nil, nil, err
		}
		return graph.CloneGroup(group), []draft{{
			graphID: g.ID,
			typ:     api.RecordGroupUpdated,
			payload: api.GroupPayload{Group: graph.CloneGroup(group)},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Group), nil
}

func (e *engineImpl) RemoveGroup(ctx context.Context, req api.RemoveGroupRequest) error {
	if req.GroupID == "" {
		return &api.ValidationError{Field: "groupId", Reason: "required"}
	}

	_, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		if err := graph.RemoveGroup(g, req.GroupID); err != nil {
			return nil, nil, err
		}
		return nil, []draft{{
			graphID: g.ID,
			typ:     api.RecordGroupDeleted,
			payload: api.GroupDeletedPayload{GroupID: req.GroupID},
		}}, nil
	})
	return err
}

func (e *engineImpl) AddGraph(ctx context.Context, req api.AddGraphRequest) (*api.Graph, error) {
	v, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := st.doc.AddGraph(req.GraphID, req.Name)
		if err != nil {
			return nil, nil, err
		}
		return graph.CloneGraph(g), []draft{{
			graphID: g.ID,
			typ:     api.RecordGraphAdded,
			payload: api.GraphPayload{GraphID: g.ID, Name: g.Name},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Graph), nil
}

func (e *engineImpl) RemoveGraph(ctx context.Context, req api.RemoveGraphRequest) error {
	if req.GraphID == "" {
		return &api.ValidationError{Field: "graphId", Reason: "required"}
	}

	_, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		if err := st.doc.RemoveGraph(req.GraphID); err != nil {
			return nil, nil, err
		}
		return nil, []draft{{
			graphID: req.GraphID,
			typ:     api.RecordGraphDeleted,
			payload: api.GraphDeletedPayload{GraphID: req.GraphID},
		}}, nil
	})
	return err
}

func (e *engineImpl) SetGraphView(ctx context.Context, req api.SetGraphViewRequest) error {
	_, err := e.do(ctx, req.WorkflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, req.GraphID)
		if err != nil {
			return nil, nil, err
		}
		g.View = req.View
		return nil, []draft{{
			graphID:   g.ID,
			typ:       api.RecordGraphViewUpdated,
			payload:   api.GraphViewPayload{GraphID: g.ID, View: req.View},
			transient: true,
		}}, nil
	})
	return err
}

func (e *engineImpl) GetGraph(ctx context.Context, workflowID, graphID string) (*api.Graph, error) {
	v, err := e.do(ctx, workflowID, func(st *actorState) (any, []draft, error) {
		g, err := resolveGraph(st, graphID)
		if err != nil {
			return nil, nil, err
		}
		return graph.CloneGraph(g), nil, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Graph), nil
}

func (e *engineImpl) GetState(ctx context.Context, workflowID string) (*api.Snapshot, error) {
	v, err := e.do(ctx, workflowID, func(st *actorState) (any, []draft, error) {
		return &api.Snapshot{
			WorkflowID: workflowID,
			Graphs:     st.doc.CloneGraphs(),
			Sequence:   st.seq,
		}, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Snapshot), nil
}

func (e *engineImpl) GetPendingUpdates(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	if workflowID == "" {
		return nil, &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	return e.updates.Query(ctx, workflowID, sinceSequence)
}

func (e *engineImpl) ClearPendingUpdates(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	return e.updates.Clear(ctx, workflowID)
}

func (e *engineImpl) FlushWorkflow(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	for {
		// A workflow without a resident actor needs no flush: actors
		// checkpoint on eviction, so the saved snapshot is current.
		a, ok := e.registry.lookup(workflowID)
		if !ok {
			return nil
		}
		_, err := a.call(ctx, func(st *actorState) (any, []draft, error) {
			return nil, nil, a.flush(st)
		})
		if errors.Is(err, errActorClosed) {
			continue
		}
		return err
	}
}

func (e *engineImpl) CloseWorkflow(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	a, ok := e.registry.detach(workflowID)
	if !ok {
		return nil
	}
	return a.stop(true)
}

func (e *engineImpl) DeleteWorkflow(ctx context.Context, workflowID string) error {
	if workflowID == "" {
		return &api.ValidationError{Field: "workflowId", Reason: "required"}
	}
	if a, ok := e.registry.detach(workflowID); ok {
		// No flush: the document is being deleted anyway.
		if err := a.stop(false); err != nil {
			return err
		}
	}
	if err := e.graphs.Delete(ctx, workflowID); err != nil {
		return err
	}
	return e.updates.Drop(ctx, workflowID)
}

func (e *engineImpl) Close(ctx context.Context) error {
	var firstErr error
	for _, a := range e.registry.detachAll() {
		if err := a.stop(true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
