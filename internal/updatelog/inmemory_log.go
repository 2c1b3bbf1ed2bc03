package updatelog

import (
	"context"
	"sync"
	"time"

	"github.com/offbit-ai/zeal-sub007/pkg/api"
)

// InMemoryLog is a goroutine-safe Log backed by per-workflow slices.
type InMemoryLog struct {
	mu        sync.Mutex
	retention Retention
	workflows map[string]*workflowLog

	// now is replaceable in tests.
	now func() time.Time
}

type workflowLog struct {
	records []api.ChangeRecord

	// trimmedThrough is the highest sequence ever dropped by the
	// retention policy. A Query cursor below it means the caller has
	// missed trimmed records.
	trimmedThrough int64
	lastSequence   int64
}

// NewInMemoryLog creates an in-memory pending update log with the
// given retention policy.
func NewInMemoryLog(retention Retention) *InMemoryLog {
	return &InMemoryLog{
		retention: retention,
		workflows: make(map[string]*workflowLog),
		now:       time.Now,
	}
}

var _ Log = (*InMemoryLog)(nil)

func (l *InMemoryLog) Append(ctx context.Context, rec api.ChangeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.workflows[rec.WorkflowID]
	if w == nil {
		w = &workflowLog{}
		l.workflows[rec.WorkflowID] = w
	}
	w.records = append(w.records, rec)
	if rec.Sequence > w.lastSequence {
		w.lastSequence = rec.Sequence
	}
	l.trim(w)
	return nil
}

// trim enforces the retention bounds, remembering the highest dropped
// sequence so Query can detect stale cursors. Caller holds l.mu.
func (l *InMemoryLog) trim(w *workflowLog) {
	drop := 0
	if l.retention.MaxRecords > 0 && len(w.records) > l.retention.MaxRecords {
		drop = len(w.records) - l.retention.MaxRecords
	}
	if l.retention.MaxAge > 0 {
		cutoff := l.now().Add(-l.retention.MaxAge)
		for drop < len(w.records) && w.records[drop].Timestamp.Before(cutoff) {
			drop++
		}
	}
	if drop == 0 {
		return
	}
	if s := w.records[drop-1].Sequence; s > w.trimmedThrough {
		w.trimmedThrough = s
	}
	w.records = append(w.records[:0], w.records[drop:]...)
}

func (l *InMemoryLog) Query(ctx context.Context, workflowID string, sinceSequence int64) ([]api.ChangeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.workflows[workflowID]
	if w == nil {
		return nil, nil
	}
	l.trim(w)

	if sinceSequence < w.trimmedThrough {
		return nil, &api.CapacityError{
			WorkflowID:     workflowID,
			SinceSequence:  sinceSequence,
			OldestRetained: w.trimmedThrough + 1,
			NewestSequence: w.lastSequence,
		}
	}

	var out []api.ChangeRecord
	for _, rec := range w.records {
		if rec.Sequence > sinceSequence {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *InMemoryLog) Clear(ctx context.Context, workflowID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w := l.workflows[workflowID]; w != nil {
		w.records = nil
	}
	return nil
}

func (l *InMemoryLog) Drop(ctx context.Context, workflowID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.workflows, workflowID)
	return nil
}

func (l *InMemoryLog) LastSequence(ctx context.Context, workflowID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w := l.workflows[workflowID]; w != nil {
		return w.lastSequence, nil
	}
	return 0, nil
}
