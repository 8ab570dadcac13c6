package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisJob is one unit of work. ID is the caller's analysis identifier and
// is not required to be unique; RunID identifies this particular run.
type AnalysisJob struct {
	ID         string    `json:"analysisId"`
	RunID      string    `json:"runId"`
	SourcePath string    `json:"sourcePath"`
	RequestID  string    `json:"requestId,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NewJob stamps a job with a fresh run id and the current time.
func NewJob(id, sourcePath, requestID string) AnalysisJob {
	return AnalysisJob{
		ID:         id,
		RunID:      uuid.NewString(),
		SourcePath: sourcePath,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC(),
	}
}
