package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for the job ledger.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	GetLatest(ctx context.Context, analysisID string) (Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	UpdateStage(ctx context.Context, runID, status, stage string, startedAt *time.Time) error
	Finish(ctx context.Context, runID string, f Finish) error
}
