package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// rollbackCaseSQL builds the CASE expression mapping each in-flight phase back
// to its stage entry boundary, plus the matching argument list.
func rollbackCaseSQL(reason string, at time.Time) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(stageRollbackTransitions)*2+1+len(stageRollbackTransitions))
	b.WriteString(`UPDATE jobs SET status = CASE status`)
	for range stageRollbackTransitions {
		b.WriteString(` WHEN ? THEN ?`)
	}
	b.WriteString(` ELSE status END,
            progress_stage = '`)
	b.WriteString(reason)
	b.WriteString(`',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`)
	for _, t := range stageRollbackTransitions {
		args = append(args, t.from, t.to)
	}
	args = append(args, at.UTC().Format(time.RFC3339Nano))
	for i, t := range stageRollbackTransitions {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, t.from)
	}
	b.WriteString(`)`)
	return b.String(), args
}

// ResetStuckProcessing rolls jobs in processing states back to the start of
// their current stage. Called once at daemon startup to recover from crashes.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	query, args := rollbackCaseSQL("Reset from interrupted stage", time.Now())
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing rolls jobs stuck in processing back to the start of
// their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args := rollbackCaseSQL("Reclaimed from stale stage", time.Now())
	query += ` AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// RequestPause flags a job so the workflow parks it at the next stage
// boundary. Pausing a terminal job is a no-op.
func (s *Store) RequestPause(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET paused = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request pause: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Resume clears the pause flag so the workflow picks the job up again.
func (s *Store) Resume(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET paused = 0, updated_at = ? WHERE id = ? AND paused = 1`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("resume job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RequestCancel flags a job for cooperative cancellation. A pending job is
// cancelled immediately; an in-flight job finishes its current probe window
// and then transitions to cancelled.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, progress_stage = 'Cancelled',
            cancel_requested = 0, paused = 0, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled,
		UserCancelReason,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel pending job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	res, err = s.execWithRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		now,
		id,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ControlState is the cheap control probe stage handlers poll between units
// of work.
type ControlState struct {
	Paused          bool
	CancelRequested bool
}

// Control reads the pause and cancel flags for a job.
func (s *Store) Control(ctx context.Context, id int64) (ControlState, error) {
	var paused, cancelRequested int
	row := s.db.QueryRowContext(ctx, `SELECT paused, cancel_requested FROM jobs WHERE id = ?`, id)
	if err := row.Scan(&paused, &cancelRequested); err != nil {
		return ControlState{}, fmt.Errorf("read control flags: %w", err)
	}
	return ControlState{Paused: paused != 0, CancelRequested: cancelRequested != 0}, nil
}

// FailRunning marks all in-flight jobs failed with the given reason. Used on
// non-graceful daemon shutdown paths.
func (s *Store) FailRunning(ctx context.Context, reason string) (int64, error) {
	placeholders := make([]string, 0, len(processingStatuses))
	args := []any{StatusFailed, reason, reason, time.Now().UTC().Format(time.RFC3339Nano)}
	for status := range processingStatuses {
		placeholders = append(placeholders, "?")
		args = append(args, status)
	}
	query := `UPDATE jobs
        SET status = ?, error_message = ?, progress_message = ?, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail running jobs: %w", err)
	}
	return res.RowsAffected()
}
