package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/offbit-ai/zeal-sub007/internal/graph"
	"github.com/offbit-ai/zeal-sub007/internal/persistence"
	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// errActorClosed is replied to requests that race with an actor's
// eviction. The engine re-resolves the registry and retries, which
// cold-starts a fresh actor.
var errActorClosed = errors.New("actor closed")

// actorState is the state owned exclusively by one actor goroutine:
// the workflow's document and its monotonic sequence counter. No other
// goroutine ever touches it.
type actorState struct {
	doc   *graph.Document
	seq   int64
	dirty bool
}

// opFunc runs on the actor goroutine. It validates and applies one
// mutation, returning the committed entity and the drafts of the
// change records to publish. A returned error means the document was
// left untouched.
type opFunc func(st *actorState) (any, []draft, error)

// draft is a change record before the actor assigns its sequence
// number and timestamp at commit. Transient drafts (view updates) are
// pushed to the live sink but consume no sequence number and never
// reach the pending update log.
type draft struct {
	graphID   string
	typ       api.RecordType
	payload   any
	transient bool
}

type request struct {
	ctx   context.Context
	op    opFunc
	reply chan result
}

type result struct {
	value any
	err   error
}

// actor is the single serialization point for one workflow. It is
// created lazily on first reference, cold-starts its document from the
// persistence boundary, and evicts itself after sitting idle.
type actor struct {
	workflowID string
	eng        *engineImpl
	mailbox    chan request

	// done is closed when the run loop has exited; enqueue uses it to
	// detect a closed actor.
	done chan struct{}

	// quit asks the run loop to exit (engine shutdown, delete).
	quit chan quitRequest
}

type quitRequest struct {
	flush bool
	reply chan error
}

func newActor(workflowID string, eng *engineImpl) *actor {
	a := &actor{
		workflowID: workflowID,
		eng:        eng,
		mailbox:    make(chan request, eng.mailboxSize),
		done:       make(chan struct{}),
		quit:       make(chan quitRequest, 1),
	}
	go a.run()
	return a
}

// call enqueues op and waits for the actor to apply it. The request
// queues FIFO behind every earlier mutation for the same workflow; it
// is never blocked by another workflow's activity.
func (a *actor) call(ctx context.Context, op opFunc) (any, error) {
	req := request{ctx: ctx, op: op, reply: make(chan result, 1)}
	select {
	case a.mailbox <- req:
	case <-a.done:
		return nil, errActorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-a.done:
		// The actor drains its mailbox on exit, so a missing reply
		// means the request was never accepted.
		select {
		case res := <-req.reply:
			return res.value, res.err
		default:
			return nil, errActorClosed
		}
	}
}

// stop asks the run loop to exit, optionally flushing first, and waits
// for it.
func (a *actor) stop(flush bool) error {
	q := quitRequest{flush: flush, reply: make(chan error, 1)}
	select {
	case a.quit <- q:
	case <-a.done:
		return nil
	}
	select {
	case err := <-q.reply:
		return err
	case <-a.done:
		return nil
	}
}

func (a *actor) run() {
	defer close(a.done)

	st, initErr := a.coldStart()

	idle := time.NewTimer(a.eng.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case req := <-a.mailbox:
			a.serve(st, initErr, req)
			a.resetIdle(idle)

		case q := <-a.quit:
			a.drain()
			var err error
			if q.flush && initErr == nil {
				err = a.flush(st)
			}
			q.reply <- err
			return

		case <-idle.C:
			if !a.tryEvict() {
				a.resetIdle(idle)
				continue
			}
			a.drain()
			if initErr == nil {
				if err := a.flush(st); err != nil {
					a.eng.logger.Error("flush_on_evict_failed",
						slog.String("workflow", a.workflowID),
						slog.Any("error", err),
					)
				}
			}
			return
		}
	}
}

func (a *actor) resetIdle(idle *time.Timer) {
	if !idle.Stop() {
		select {
		case <-idle.C:
		default:
		}
	}
	idle.Reset(a.eng.idleTimeout)
}

// tryEvict removes the actor from the registry. It fails when a caller
// enqueued a request between the timer firing and the removal; the
// actor then keeps running.
func (a *actor) tryEvict() bool {
	return a.eng.registry.remove(a.workflowID, a, func() bool {
		return len(a.mailbox) == 0
	})
}

// drain replies errActorClosed to any request that slipped into the
// mailbox while the actor was shutting down.
func (a *actor) drain() {
	for {
		select {
		case req := <-a.mailbox:
			req.reply <- result{err: errActorClosed}
		default:
			return
		}
	}
}

// serve applies one request and publishes its change records.
func (a *actor) serve(st *actorState, initErr error, req request) {
	if initErr != nil {
		req.reply <- result{err: fmt.Errorf("workflow %s unavailable: %w", a.workflowID, initErr)}
		return
	}
	if err := req.ctx.Err(); err != nil {
		req.reply <- result{err: err}
		return
	}

	value, drafts, err := req.op(st)
	if err != nil {
		req.reply <- result{err: err}
		return
	}

	now := time.Now()
	for _, d := range drafts {
		if !d.transient {
			st.seq++
			st.dirty = true
		}
		rec := api.ChangeRecord{
			WorkflowID: a.workflowID,
			GraphID:    d.graphID,
			Sequence:   st.seq,
			Timestamp:  now,
			Type:       d.typ,
			Payload:    d.payload,
		}
		if !d.transient {
			// Best-effort: the document is the source of truth, so a
			// log failure must not roll back the committed mutation.
			if err := a.eng.updates.Append(req.ctx, rec); err != nil {
				a.eng.logger.Warn("pending_log_append_failed",
					slog.String("workflow", a.workflowID),
					slog.Int64("sequence", rec.Sequence),
					slog.Any("error", err),
				)
			}
		}
		a.eng.sink.Deliver(req.ctx, rec)
	}

	req.reply <- result{value: value}
}

// coldStart loads the document from the persistence boundary. A
// workflow that was never saved starts fresh with an empty main graph.
// Sequence numbers resume from whichever is further along: the saved
// snapshot or the pending update log.
func (a *actor) coldStart() (*actorState, error) {
	ctx := context.Background()

	snap, err := a.eng.graphs.Load(ctx, a.workflowID)
	if err != nil && !errors.Is(err, persistence.ErrWorkflowNotFound) {
		a.eng.logger.Error("workflow_load_failed",
			slog.String("workflow", a.workflowID),
			slog.Any("error", err),
		)
		return nil, err
	}

	st := &actorState{}
	if snap != nil {
		st.doc = graph.FromGraphs(a.workflowID, snap.Graphs)
		st.seq = snap.Sequence
	} else {
		st.doc = graph.NewDocument(a.workflowID)
	}

	if last, err := a.eng.updates.LastSequence(ctx, a.workflowID); err == nil && last > st.seq {
		st.seq = last
	}
	return st, nil
}

// flush checkpoints the document to the persistence boundary.
func (a *actor) flush(st *actorState) error {
	if !st.dirty {
		return nil
	}
	snap := &api.Snapshot{
		WorkflowID: a.workflowID,
		Graphs:     st.doc.CloneGraphs(),
		Sequence:   st.seq,
	}
	if err := a.eng.graphs.Save(context.Background(), snap); err != nil {
		return err
	}
	st.dirty = false
	return nil
}
