package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-analyzer/internal/dispatch"
	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/shared/metrics"
	"media-analyzer/internal/shared/telemetry"
)

// Enqueuer accepts jobs for the worker.
type Enqueuer interface {
	Enqueue(job pipeline.AnalysisJob) error
}

// Stager places source files where the worker can read them.
type Stager interface {
	Acquire(ctx context.Context, jobID, fileName string, r io.Reader) (string, int64, string, error)
	Resolve(jobID, fileName string) (string, error)
	Release(path string) error
	Contains(path string) bool
}

// Service accepts analysis requests, records them in the ledger and hands
// them to the queue. It also implements pipeline.Tracker so the worker can
// report progress back into the ledger.
type Service struct {
	Repo  Repo
	Queue Enqueuer
	Files Stager
}

var _ pipeline.Tracker = (*Service)(nil)

// Submit enqueues sourcePath for analysisID. The ledger is best effort; the
// queue decides whether the job is accepted.
func (s *Service) Submit(ctx context.Context, analysisID, sourcePath string) (pipeline.AnalysisJob, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return pipeline.AnalysisJob{}, ErrAnalysisIDRequired
	}
	if strings.TrimSpace(sourcePath) == "" {
		return pipeline.AnalysisJob{}, ErrSourceRequired
	}
	if s.Queue == nil {
		return pipeline.AnalysisJob{}, errors.New("analysis queue not configured")
	}

	job := pipeline.NewJob(analysisID, sourcePath, requestIDFromContext(ctx))
	s.record(ctx, job)

	if err := s.Queue.Enqueue(job); err != nil {
		metrics.IncJobsRejected()
		s.reject(ctx, job, err)
		return job, err
	}
	metrics.IncJobsEnqueued()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        job.RequestID,
		"analysis_id":       job.ID,
		"run_id":            job.RunID,
		"status":            StatusQueued,
		"status_transition": "->queued",
	})
	return job, nil
}

// SubmitStaged enqueues a file that another process already placed in the temp directory.
func (s *Service) SubmitStaged(ctx context.Context, analysisID, fileName string) (pipeline.AnalysisJob, error) {
	if s.Files == nil {
		return pipeline.AnalysisJob{}, errors.New("temp file store not configured")
	}
	path, err := s.Files.Resolve(analysisID, fileName)
	if err != nil {
		return pipeline.AnalysisJob{}, err
	}
	return s.Submit(ctx, analysisID, path)
}

// SubmitFile enqueues the media at sourcePath. A file outside the temp
// directory is copied in first so the worker only ever removes its own copy.
func (s *Service) SubmitFile(ctx context.Context, analysisID, sourcePath string) (pipeline.AnalysisJob, error) {
	if s.Files == nil {
		return pipeline.AnalysisJob{}, errors.New("temp file store not configured")
	}
	if strings.TrimSpace(sourcePath) == "" {
		return pipeline.AnalysisJob{}, ErrSourceRequired
	}
	if s.Files.Contains(sourcePath) {
		return s.Submit(ctx, analysisID, sourcePath)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return pipeline.AnalysisJob{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return s.SubmitUpload(ctx, analysisID, filepath.Base(sourcePath), f)
}

// SubmitUpload stages r in the temp directory and enqueues it. The staged file
// is removed again if the queue refuses the job.
func (s *Service) SubmitUpload(ctx context.Context, analysisID, fileName string, r io.Reader) (pipeline.AnalysisJob, error) {
	if s.Files == nil {
		return pipeline.AnalysisJob{}, errors.New("temp file store not configured")
	}
	if strings.TrimSpace(analysisID) == "" {
		return pipeline.AnalysisJob{}, ErrAnalysisIDRequired
	}
	path, size, mimeType, err := s.Files.Acquire(ctx, analysisID, fileName, r)
	if err != nil {
		return pipeline.AnalysisJob{}, fmt.Errorf("stage upload: %w", err)
	}
	telemetry.Info("analysis.upload.staged", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"size_bytes":  size,
		"mime_type":   mimeType,
	})
	job, err := s.Submit(ctx, analysisID, path)
	if err != nil {
		if releaseErr := s.Files.Release(path); releaseErr != nil {
			telemetry.Warn("analysis.upload.cleanup_failed", map[string]any{
				"analysis_id": analysisID,
				"error":       releaseErr.Error(),
			})
		}
		return job, err
	}
	return job, nil
}

// Get returns the latest ledger record for an analysis id.
func (s *Service) Get(ctx context.Context, analysisID string) (Record, error) {
	return s.Repo.GetLatest(ctx, analysisID)
}

// List returns the newest ledger records.
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	return s.Repo.ListRecent(ctx, limit)
}

// StageChanged mirrors a worker stage transition into the ledger.
func (s *Service) StageChanged(ctx context.Context, job pipeline.AnalysisJob, from, to pipeline.Stage) error {
	if s.Repo == nil {
		return nil
	}
	var startedAt *time.Time
	if from == pipeline.StageQueued {
		now := time.Now().UTC()
		startedAt = &now
	}
	return s.Repo.UpdateStage(ctx, job.RunID, statusForStage(to), string(to), startedAt)
}

// JobFinished writes the run's payload and delivery outcome into the ledger.
func (s *Service) JobFinished(ctx context.Context, job pipeline.AnalysisJob, final pipeline.Stage, payload dispatch.Payload, outcome dispatch.Outcome) error {
	if s.Repo == nil {
		return nil
	}
	var result json.RawMessage
	if payload.Results != nil {
		raw, err := json.Marshal(payload.Results)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		result = raw
	}
	return s.Repo.Finish(ctx, job.RunID, Finish{
		Status:         statusForStage(final),
		Stage:          string(final),
		Result:         result,
		ErrorCode:      payload.ErrorCode,
		ErrorMessage:   payload.Error,
		Delivered:      outcome.Delivered,
		DeliveryStatus: outcome.HTTPStatus,
		DeliveryError:  outcome.ErrorString(),
		CompletedAt:    time.Now().UTC(),
	})
}

func (s *Service) record(ctx context.Context, job pipeline.AnalysisJob) {
	if s.Repo == nil {
		return
	}
	err := s.Repo.Create(ctx, Record{
		RunID:      job.RunID,
		AnalysisID: job.ID,
		SourcePath: job.SourcePath,
		RequestID:  job.RequestID,
		Status:     StatusQueued,
		Stage:      string(pipeline.StageQueued),
		EnqueuedAt: job.EnqueuedAt,
		UpdatedAt:  job.EnqueuedAt,
	})
	if err != nil {
		telemetry.Warn("analysis.ledger.error", map[string]any{
			"analysis_id": job.ID,
			"run_id":      job.RunID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) reject(ctx context.Context, job pipeline.AnalysisJob, cause error) {
	code := ErrorCodeQueueFull
	if errors.Is(cause, pipeline.ErrQueueClosed) {
		code = ErrorCodeQueueClosed
	}
	telemetry.Warn("analysis.rejected", map[string]any{
		"request_id":  job.RequestID,
		"analysis_id": job.ID,
		"run_id":      job.RunID,
		"error_code":  code,
	})
	if s.Repo == nil {
		return
	}
	err := s.Repo.Finish(ctx, job.RunID, Finish{
		Status:       StatusRejected,
		Stage:        string(pipeline.StageQueued),
		ErrorCode:    code,
		ErrorMessage: cause.Error(),
		CompletedAt:  time.Now().UTC(),
	})
	if err != nil {
		telemetry.Warn("analysis.ledger.error", map[string]any{
			"analysis_id": job.ID,
			"run_id":      job.RunID,
			"error":       err.Error(),
		})
	}
}

func statusForStage(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageQueued:
		return StatusQueued
	case pipeline.StageDone:
		return StatusCompleted
	case pipeline.StageFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}
