// Package poller implements a catch-up consumer for a workflow's
// pending update log. It tracks a sequence cursor, repeatedly asks the
// engine for records past the cursor, and resyncs from a full snapshot
// when the log has already trimmed the records it needs.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// DefaultInterval is the pause between polls in Run.
const DefaultInterval = time.Second

// Handler is invoked once per change record, in sequence order. If it
// returns an error the cursor stops advancing and the same record is
// redelivered on the next poll, so handlers should be idempotent.
type Handler func(ctx context.Context, rec api.ChangeRecord) error

// ResyncFunc is invoked with a full snapshot when the poller has fallen
// behind the log's retention window and cannot catch up incrementally.
type ResyncFunc func(ctx context.Context, snap *api.Snapshot) error

// Config carries the optional knobs for a Poller.
type Config struct {
	// Interval is the pause between polls in Run. Defaults to
	// DefaultInterval.
	Interval time.Duration

	// StartAfter is the initial cursor: records with sequence greater
	// than this value are delivered. Zero means deliver everything the
	// log retains.
	StartAfter int64

	// OnResync, when set, receives the snapshot taken after a
	// retention miss. When nil the poller still jumps its cursor to
	// the snapshot's sequence, it just doesn't hand the state over.
	OnResync ResyncFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Poller drains one workflow's pending updates into a Handler.
// It is not safe for concurrent use; run one Poller per consumer.
type Poller struct {
	engine     api.Engine
	workflowID string
	handler    Handler

	interval time.Duration
	onResync ResyncFunc
	logger   *slog.Logger

	cursor int64
}

// New creates a Poller with default configuration.
func New(engine api.Engine, workflowID string, handler Handler) *Poller {
	return NewWithConfig(engine, workflowID, handler, Config{})
}

// NewWithConfig creates a Poller using the given configuration.
func NewWithConfig(engine api.Engine, workflowID string, handler Handler, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		engine:     engine,
		workflowID: workflowID,
		handler:    handler,
		interval:   cfg.Interval,
		onResync:   cfg.OnResync,
		logger:     cfg.Logger,
		cursor:     cfg.StartAfter,
	}
}

// Cursor returns the sequence number of the last record handled.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

// PollOnce performs a single catch-up round. Returns the number of
// records handled. A retention miss triggers a snapshot resync and
// counts as zero records handled.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	records, err := p.engine.GetPendingUpdates(ctx, p.workflowID, p.cursor)
	if err != nil {
		var capErr *api.CapacityError
		if errors.As(err, &capErr) {
			return 0, p.resync(ctx, capErr)
		}
		return 0, err
	}

	for i, rec := range records {
		if err := p.handler(ctx, rec); err != nil {
			return i, err
		}
		p.cursor = rec.Sequence
	}
	return len(records), nil
}

// resync fetches a full snapshot and jumps the cursor past everything
// the snapshot already reflects.
func (p *Poller) resync(ctx context.Context, capErr *api.CapacityError) error {
	p.logger.InfoContext(ctx, "update log trimmed past cursor, resyncing from snapshot",
		"workflow_id", p.workflowID,
		"cursor", capErr.SinceSequence,
		"oldest_retained", capErr.OldestRetained)

	snap, err := p.engine.GetState(ctx, p.workflowID)
	if err != nil {
		return err
	}
	if p.onResync != nil {
		if err := p.onResync(ctx, snap); err != nil {
			return err
		}
	}
	p.cursor = snap.Sequence
	return nil
}

// Run polls until ctx is cancelled. Poll errors are logged and the
// loop keeps going; only ctx cancellation ends it.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.WarnContext(ctx, "poll failed",
				"workflow_id", p.workflowID,
				"error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
