package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	enqueuedAt := time.Now().UTC()
	rec := Record{
		RunID:      "run-1",
		AnalysisID: "a-1",
		SourcePath: "/tmp/a-1_clip.mp4",
		Status:     StatusQueued,
		Stage:      "queued",
		EnqueuedAt: enqueuedAt,
	}

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs("run-1", "a-1", "/tmp/a-1_clip.mp4", sqlmockNullString(""), StatusQueued, "queued", enqueuedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetLatest(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	cols := []string{
		"run_id", "analysis_id", "source_path", "request_id", "status", "stage", "result",
		"error_code", "error_message", "delivered", "delivery_status", "delivery_error",
		"enqueued_at", "started_at", "completed_at", "updated_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM analysis_runs")).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"run-2", "a-1", "/tmp/x", "req-9", StatusCompleted, "done", []byte(`{"overall":{"status":"Verified Real"}}`),
			nil, nil, true, int64(200), nil,
			now, now, now, now,
		))

	rec, err := repo.GetLatest(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if rec.RunID != "run-2" || rec.RequestID != "req-9" || !rec.Delivered || rec.DeliveryStatus != 200 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	var result map[string]any
	if err := json.Unmarshal(rec.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if rec.StartedAt == nil || rec.CompletedAt == nil {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestPGRepoGetLatestNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM analysis_runs")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	if _, err := repo.GetLatest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateStageMissingRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-x", StatusProcessing, "extracting", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	started := time.Now().UTC()
	if err := repo.UpdateStage(context.Background(), "run-x", StatusProcessing, "extracting", &started); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoFinish(t *testing.T) {
	repo, mock := newMockRepo(t)
	completed := time.Now().UTC()
	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-1", StatusFailed, "failed", nil,
			sqlmockNullString("EXTRACTION_ERROR"), sqlmockNullString("bad file"),
			false, 500, sqlmockNullString("callback returned 500"), completed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finish(context.Background(), "run-1", Finish{
		Status:         StatusFailed,
		Stage:          "failed",
		ErrorCode:      "EXTRACTION_ERROR",
		ErrorMessage:   "bad file",
		DeliveryStatus: 500,
		DeliveryError:  "callback returned 500",
		CompletedAt:    completed,
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func sqlmockNullString(s string) any {
	return nullString(s)
}
