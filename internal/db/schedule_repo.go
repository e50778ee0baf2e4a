package db

import (
	"context"
	"time"

	"terrasol/internal/types"
)

// ScheduleRepository provides data access for the precompute_schedules table,
// one row per target date. Status transitions are enforced in SQL so that
// concurrent workers cannot both advance the same schedule: the
// scheduled -> running step is a compare-and-set, and terminal rows reject
// every further transition.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Upsert ensures a schedule row exists for the target date and returns it.
// An existing row is returned unchanged regardless of its status.
func (r *ScheduleRepository) Upsert(ctx context.Context, targetDate time.Time) (*types.PrecomputationSchedule, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO precompute_schedules (target_date, status, created_at, updated_at)
		 VALUES ($1, 'scheduled', NOW(), NOW())
		 ON CONFLICT (target_date) DO UPDATE SET target_date = EXCLUDED.target_date
		 RETURNING target_date, status, job_id, patios_total, patios_processed,
		           retry_count, error_message, created_at, updated_at`,
		dateOnly(targetDate),
	)
	return scanSchedule(row)
}

// Get returns the schedule for the target date.
func (r *ScheduleRepository) Get(ctx context.Context, targetDate time.Time) (*types.PrecomputationSchedule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT target_date, status, job_id, patios_total, patios_processed,
		        retry_count, error_message, created_at, updated_at
		 FROM precompute_schedules
		 WHERE target_date = $1`,
		dateOnly(targetDate),
	)
	s, err := scanSchedule(row)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeInternalDB && isNoRows(appErr.Err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
		}
		return nil, err
	}
	return s, nil
}

// TryStart performs the scheduled -> running compare-and-set, claiming the
// run for jobID. Returns false when the row is missing, already running, or
// terminal; exactly one concurrent caller can win.
func (r *ScheduleRepository) TryStart(ctx context.Context, targetDate time.Time, jobID string, patiosTotal int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE precompute_schedules
		 SET status = 'running', job_id = $2, patios_total = $3,
		     patios_processed = 0, error_message = NULL, updated_at = NOW()
		 WHERE target_date = $1 AND status = 'scheduled'`,
		dateOnly(targetDate),
		jobID,
		patiosTotal,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim schedule", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProgress records how many patios the running job has processed.
func (r *ScheduleRepository) UpdateProgress(ctx context.Context, targetDate time.Time, processed int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE precompute_schedules
		 SET patios_processed = $2, updated_at = NOW()
		 WHERE target_date = $1 AND status = 'running'`,
		dateOnly(targetDate),
		processed,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update schedule progress", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictRunActive, "schedule is not running", nil)
	}
	return nil
}

// Complete moves a running schedule to completed.
func (r *ScheduleRepository) Complete(ctx context.Context, targetDate time.Time, processed int) error {
	return r.finishRun(ctx, targetDate, types.ScheduleCompleted, processed, "")
}

// Fail moves a running schedule to failed, recording the error message and
// bumping the retry counter.
func (r *ScheduleRepository) Fail(ctx context.Context, targetDate time.Time, processed int, errMsg string) error {
	return r.finishRun(ctx, targetDate, types.ScheduleFailed, processed, errMsg)
}

func (r *ScheduleRepository) finishRun(ctx context.Context, targetDate time.Time, status types.ScheduleStatus, processed int, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	retryBump := 0
	if status == types.ScheduleFailed {
		retryBump = 1
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE precompute_schedules
		 SET status = $2, patios_processed = $3, error_message = $4,
		     retry_count = retry_count + $5, updated_at = NOW()
		 WHERE target_date = $1 AND status = 'running'`,
		dateOnly(targetDate),
		string(status),
		processed,
		msg,
		retryBump,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish schedule run", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictRunActive, "schedule is not running", nil)
	}
	return nil
}

// Cancel moves a non-terminal schedule to cancelled. Returns false when the
// row is already terminal.
func (r *ScheduleRepository) Cancel(ctx context.Context, targetDate time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE precompute_schedules
		 SET status = 'cancelled', updated_at = NOW()
		 WHERE target_date = $1 AND status IN ('scheduled', 'running')`,
		dateOnly(targetDate),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel schedule", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetForRetry moves a failed schedule back to scheduled, provided the retry
// budget is not exhausted. Returns false when the row is not failed or has
// run out of retries.
func (r *ScheduleRepository) ResetForRetry(ctx context.Context, targetDate time.Time, maxRetries int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE precompute_schedules
		 SET status = 'scheduled', error_message = NULL, updated_at = NOW()
		 WHERE target_date = $1 AND status = 'failed' AND retry_count <= $2`,
		dateOnly(targetDate),
		maxRetries,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to reset schedule for retry", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByStatus returns schedules in the given status, oldest target date
// first.
func (r *ScheduleRepository) ListByStatus(ctx context.Context, status types.ScheduleStatus, limit int) ([]types.PrecomputationSchedule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT target_date, status, job_id, patios_total, patios_processed,
		        retry_count, error_message, created_at, updated_at
		 FROM precompute_schedules
		 WHERE status = $1
		 ORDER BY target_date
		 LIMIT $2`,
		string(status),
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedules", err)
	}
	defer rows.Close()

	var out []types.PrecomputationSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedules", err)
	}
	return out, nil
}

func scanSchedule(row interface{ Scan(dest ...any) error }) (*types.PrecomputationSchedule, error) {
	var (
		s      types.PrecomputationSchedule
		status string
		jobID  *string
		errMsg *string
	)
	if err := row.Scan(
		&s.TargetDate,
		&status,
		&jobID,
		&s.PatiosTotal,
		&s.PatiosProcessed,
		&s.RetryCount,
		&errMsg,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule", err)
	}
	s.Status = types.ScheduleStatus(status)
	if jobID != nil {
		s.JobID = *jobID
	}
	if errMsg != nil {
		s.ErrorMessage = *errMsg
	}
	return &s, nil
}

// dateOnly truncates to midnight UTC so every caller addresses the partition
// key consistently.
func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
