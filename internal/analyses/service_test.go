package analyses

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/dispatch"
	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/tempfiles"
)

func newTestService(t *testing.T, capacity int) (*Service, *pipeline.Queue, *MemoryRepo, string) {
	t.Helper()
	dir := t.TempDir()
	repo := NewMemoryRepo()
	queue := pipeline.NewQueue(capacity)
	return &Service{Repo: repo, Queue: queue, Files: tempfiles.New(dir)}, queue, repo, dir
}

func TestSubmitRecordsAndEnqueues(t *testing.T) {
	svc, queue, repo, _ := newTestService(t, 2)
	ctx := WithRequestID(context.Background(), "req-1")

	job, err := svc.Submit(ctx, "a-1", "/tmp/a-1_clip.mp4")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.RequestID != "req-1" || job.RunID == "" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected 1 queued job, got %d", queue.Len())
	}
	rec, err := repo.GetLatest(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if rec.Status != StatusQueued || rec.RunID != job.RunID {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSubmitValidates(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	if _, err := svc.Submit(context.Background(), " ", "/tmp/x"); !errors.Is(err, ErrAnalysisIDRequired) {
		t.Fatalf("expected ErrAnalysisIDRequired, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), "a", ""); !errors.Is(err, ErrSourceRequired) {
		t.Fatalf("expected ErrSourceRequired, got %v", err)
	}
}

func TestSubmitRejectedWhenQueueFull(t *testing.T) {
	svc, _, repo, _ := newTestService(t, 1)
	if _, err := svc.Submit(context.Background(), "a-1", "/tmp/1"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), "a-2", "/tmp/2")
	if !errors.Is(err, pipeline.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	rec, err := repo.GetLatest(context.Background(), "a-2")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if rec.Status != StatusRejected || rec.ErrorCode != ErrorCodeQueueFull {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSubmitDuplicateIDsCreateSeparateRuns(t *testing.T) {
	svc, queue, repo, _ := newTestService(t, 4)
	first, err := svc.Submit(context.Background(), "dup", "/tmp/1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := svc.Submit(context.Background(), "dup", "/tmp/2")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatalf("expected distinct run ids")
	}
	if queue.Len() != 2 {
		t.Fatalf("expected both jobs queued, got %d", queue.Len())
	}
	rec, _ := repo.GetLatest(context.Background(), "dup")
	if rec.RunID != second.RunID {
		t.Fatalf("expected latest run %s, got %s", second.RunID, rec.RunID)
	}
}

func TestSubmitUploadReleasesOnRejection(t *testing.T) {
	svc, queue, _, dir := newTestService(t, 1)
	queue.Close()

	_, err := svc.SubmitUpload(context.Background(), "a-1", "clip.mp4", strings.NewReader("data"))
	if !errors.Is(err, pipeline.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a-1_clip.mp4")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected staged file removed, got %v", statErr)
	}
}

func TestSubmitStagedResolvesTempFile(t *testing.T) {
	svc, queue, _, dir := newTestService(t, 1)
	if _, err := svc.SubmitStaged(context.Background(), "a-1", "clip.mp4"); !errors.Is(err, tempfiles.ErrNotStaged) {
		t.Fatalf("expected ErrNotStaged, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a-1_clip.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	job, err := svc.SubmitStaged(context.Background(), "a-1", "clip.mp4")
	if err != nil {
		t.Fatalf("SubmitStaged: %v", err)
	}
	if job.SourcePath != filepath.Join(dir, "a-1_clip.mp4") || queue.Len() != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestTrackerUpdatesLedger(t *testing.T) {
	svc, _, repo, _ := newTestService(t, 1)
	job, err := svc.Submit(context.Background(), "a-1", "/tmp/1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := svc.StageChanged(context.Background(), job, pipeline.StageQueued, pipeline.StageExtracting); err != nil {
		t.Fatalf("StageChanged: %v", err)
	}
	rec, _ := repo.GetLatest(context.Background(), "a-1")
	if rec.Status != StatusProcessing || rec.Stage != "extracting" || rec.StartedAt == nil {
		t.Fatalf("unexpected record after stage change: %+v", rec)
	}

	payload := dispatch.Completed("a-1", dispatch.Results{
		Overall: detection.AggregateVerdict{Confidence: 94, Status: detection.StatusVerifiedReal},
	})
	outcome := dispatch.Outcome{AnalysisID: "a-1", Delivered: true, HTTPStatus: 200}
	if err := svc.JobFinished(context.Background(), job, pipeline.StageDone, payload, outcome); err != nil {
		t.Fatalf("JobFinished: %v", err)
	}
	rec, _ = repo.GetLatest(context.Background(), "a-1")
	if rec.Status != StatusCompleted || !rec.Delivered || rec.DeliveryStatus != 200 {
		t.Fatalf("unexpected final record: %+v", rec)
	}
	if !strings.Contains(string(rec.Result), "Verified Real") || rec.CompletedAt == nil {
		t.Fatalf("expected stored result, got %s", rec.Result)
	}
}

func TestMemoryRepoListRecent(t *testing.T) {
	repo := NewMemoryRepo()
	for _, id := range []string{"r1", "r2", "r3"} {
		if err := repo.Create(context.Background(), Record{RunID: id, AnalysisID: "a-" + id}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	recs, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recs) != 2 || recs[0].RunID != "r3" || recs[1].RunID != "r2" {
		t.Fatalf("unexpected order: %+v", recs)
	}
	if err := repo.UpdateStage(context.Background(), "missing", StatusProcessing, "analyzing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitFileCopiesExternalSource(t *testing.T) {
	svc, queue, _, dir := newTestService(t, 4)
	userFile := filepath.Join(t.TempDir(), "holiday.mp4")
	if err := os.WriteFile(userFile, []byte("original"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	job, err := svc.SubmitFile(context.Background(), "a-1", userFile)
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if job.SourcePath != filepath.Join(dir, "a-1_holiday.mp4") {
		t.Fatalf("expected staged copy, got %s", job.SourcePath)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected job queued")
	}

	if err := svc.Files.Release(job.SourcePath); err != nil {
		t.Fatalf("Release: %v", err)
	}
	data, err := os.ReadFile(userFile)
	if err != nil || string(data) != "original" {
		t.Fatalf("original file changed: %q %v", data, err)
	}
}

func TestSubmitFileUsesStagedPath(t *testing.T) {
	svc, _, _, dir := newTestService(t, 4)
	staged := filepath.Join(dir, "a-1_clip.mp4")
	if err := os.WriteFile(staged, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	job, err := svc.SubmitFile(context.Background(), "a-1", staged)
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if job.SourcePath != staged {
		t.Fatalf("expected staged path reused, got %s", job.SourcePath)
	}
}

func TestSubmitFileMissingSource(t *testing.T) {
	svc, queue, _, _ := newTestService(t, 4)
	_, err := svc.SubmitFile(context.Background(), "a-1", filepath.Join(t.TempDir(), "gone.mp4"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected nothing queued")
	}
}
