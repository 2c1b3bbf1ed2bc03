package zeal

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/offbit-ai/zeal-sub007/pkg/poller"
)

// LocalRunner bundles an in-memory Engine with managed poller
// goroutines to provide a simple single-process setup for development
// and debugging.
//
// Typical usage:
//
//	runner := zeal.NewLocalRunner()
//	_, _ = runner.Engine.AddNode(ctx, zeal.AddNodeRequest{WorkflowID: "wf-1", ...})
//
//	_ = runner.StartPoller(ctx, "wf-1", func(ctx context.Context, rec zeal.ChangeRecord) error {
//	    log.Printf("change: %s seq=%d", rec.Type, rec.Sequence)
//	    return nil
//	})
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine is the in-memory engine used by this runner.
	Engine Engine

	mu      sync.Mutex
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
	stopped bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory
// engine.
//
// This is intended for local development, tests, and simple
// single-process deployments.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerWithSink(nil)
}

// NewLocalRunnerWithSink is like NewLocalRunner but also delivers live
// change records to the given sink.
func NewLocalRunnerWithSink(sink Sink) *LocalRunner {
	return &LocalRunner{
		Engine: NewInMemoryEngineWithSink(sink),
	}
}

// StartPoller starts a goroutine that drains the workflow's pending
// updates into the handler until Stop is called. Each call starts an
// independent poller with its own cursor, so several workflows (or
// several consumers of one workflow) can run side by side.
func (r *LocalRunner) StartPoller(ctx context.Context, workflowID string, handler poller.Handler) error {
	return r.StartPollerWithConfig(ctx, workflowID, handler, poller.Config{})
}

// StartPollerWithConfig is like StartPoller with explicit poller
// configuration.
func (r *LocalRunner) StartPollerWithConfig(ctx context.Context, workflowID string, handler poller.Handler, cfg poller.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errors.New("zeal: LocalRunner already stopped")
	}
	if r.cancel == nil {
		r.ctx, r.cancel = context.WithCancel(ctx)
	}

	p := poller.NewWithConfig(r.Engine, workflowID, handler, cfg)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := p.Run(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("zeal: local runner poller error: %v", err)
		}
	}()

	return nil
}

// Stop cancels all poller goroutines started by StartPoller, waits for
// them to exit, then closes the engine so every resident workflow is
// flushed.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.stopped = true
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()

	if err := r.Engine.Close(context.Background()); err != nil {
		log.Printf("zeal: local runner close error: %v", err)
	}
}
