package analyses

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `run_id, analysis_id, source_path, request_id, status, stage, result,
       error_code, error_message, delivered, delivery_status, delivery_error,
       enqueued_at, started_at, completed_at, updated_at`

// Create inserts a new ledger record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO analysis_runs (run_id, analysis_id, source_path, request_id, status, stage, enqueued_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, query,
		rec.RunID,
		rec.AnalysisID,
		rec.SourcePath,
		nullString(rec.RequestID),
		rec.Status,
		rec.Stage,
		rec.EnqueuedAt,
		updatedAt,
	)
	return err
}

// GetLatest returns the newest run for an analysis id.
func (r *PGRepo) GetLatest(ctx context.Context, analysisID string) (Record, error) {
	query := `
SELECT ` + recordColumns + `
FROM analysis_runs
WHERE analysis_id = $1
ORDER BY enqueued_at DESC
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, analysisID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListRecent returns up to limit runs, newest first.
func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + recordColumns + `
FROM analysis_runs
ORDER BY enqueued_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateStage records a stage transition. started_at is only set once.
func (r *PGRepo) UpdateStage(ctx context.Context, runID, status, stage string, startedAt *time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = $2, stage = $3, started_at = COALESCE(started_at, $4), updated_at = NOW()
WHERE run_id = $1`
	res, err := r.DB.ExecContext(ctx, query, runID, status, stage, startedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Finish writes the terminal fields of a run.
func (r *PGRepo) Finish(ctx context.Context, runID string, f Finish) error {
	const query = `
UPDATE analysis_runs
SET status = $2, stage = $3, result = $4, error_code = $5, error_message = $6,
    delivered = $7, delivery_status = $8, delivery_error = $9, completed_at = $10, updated_at = NOW()
WHERE run_id = $1`
	var result any
	if len(f.Result) > 0 {
		result = []byte(f.Result)
	}
	var deliveryStatus any
	if f.DeliveryStatus != 0 {
		deliveryStatus = f.DeliveryStatus
	}
	res, err := r.DB.ExecContext(ctx, query,
		runID,
		f.Status,
		f.Stage,
		result,
		nullString(f.ErrorCode),
		nullString(f.ErrorMessage),
		f.Delivered,
		deliveryStatus,
		nullString(f.DeliveryError),
		f.CompletedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec            Record
		requestID      sql.NullString
		result         []byte
		errorCode      sql.NullString
		errorMessage   sql.NullString
		deliveryStatus sql.NullInt64
		deliveryError  sql.NullString
		startedAt      sql.NullTime
		completedAt    sql.NullTime
	)
	err := row.Scan(
		&rec.RunID,
		&rec.AnalysisID,
		&rec.SourcePath,
		&requestID,
		&rec.Status,
		&rec.Stage,
		&result,
		&errorCode,
		&errorMessage,
		&rec.Delivered,
		&deliveryStatus,
		&deliveryError,
		&rec.EnqueuedAt,
		&startedAt,
		&completedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.RequestID = requestID.String
	if len(result) > 0 {
		rec.Result = append([]byte(nil), result...)
	}
	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String
	rec.DeliveryStatus = int(deliveryStatus.Int64)
	rec.DeliveryError = deliveryError.String
	if startedAt.Valid {
		rec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
