package analyses

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores ledger records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	byRun map[string]Record
	order []string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byRun: make(map[string]Record)}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if _, exists := r.byRun[rec.RunID]; !exists {
		r.order = append(r.order, rec.RunID)
	}
	r.byRun[rec.RunID] = rec
	return nil
}

// GetLatest returns the most recently created record for an analysis id.
func (r *MemoryRepo) GetLatest(ctx context.Context, analysisID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if rec := r.byRun[r.order[i]]; rec.AnalysisID == analysisID {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// ListRecent returns up to limit records, newest first.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.order) {
		limit = len(r.order)
	}
	out := make([]Record, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.byRun[r.order[i]])
	}
	return out, nil
}

// UpdateStage records a stage transition. StartedAt is only set once.
func (r *MemoryRepo) UpdateStage(ctx context.Context, runID, status, stage string, startedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byRun[runID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Stage = stage
	if rec.StartedAt == nil && startedAt != nil {
		t := *startedAt
		rec.StartedAt = &t
	}
	rec.UpdatedAt = time.Now().UTC()
	r.byRun[runID] = rec
	return nil
}

// Finish writes the terminal fields of a run.
func (r *MemoryRepo) Finish(ctx context.Context, runID string, f Finish) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byRun[runID]
	if !ok {
		return ErrNotFound
	}
	rec.Status = f.Status
	rec.Stage = f.Stage
	rec.Result = append([]byte(nil), f.Result...)
	rec.ErrorCode = f.ErrorCode
	rec.ErrorMessage = f.ErrorMessage
	rec.Delivered = f.Delivered
	rec.DeliveryStatus = f.DeliveryStatus
	rec.DeliveryError = f.DeliveryError
	completed := f.CompletedAt
	rec.CompletedAt = &completed
	rec.UpdatedAt = time.Now().UTC()
	r.byRun[runID] = rec
	return nil
}
