// internal/store/scheduled_sends.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/models"
)

const sendColumns = `id, contact_id, campaign_id, account_id, step_index,
	send_at, status, attempts, last_error, sent_at, created_at, updated_at`

func scanSend(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.ScheduledSend, error) {
	var ss models.ScheduledSend
	var lastError sql.NullString
	err := scanner.Scan(
		&ss.ID, &ss.ContactID, &ss.CampaignID, &ss.AccountID, &ss.StepIndex,
		&ss.SendAt, &ss.Status, &ss.Attempts, &lastError, &ss.SentAt,
		&ss.CreatedAt, &ss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ss.LastError = lastError.String
	return &ss, nil
}

// EnqueueSend inserts a planned send. One (contact, step) pair gets at
// most one live row, so rebuilding a queue over the same contacts is a
// no-op. Returns false when the row already existed.
func (s *Store) EnqueueSend(ctx context.Context, ss *models.ScheduledSend) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_sends (id, contact_id, campaign_id, account_id, step_index,
			send_at, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
		ON CONFLICT (contact_id, step_index) DO NOTHING`,
		ss.ID, ss.ContactID, ss.CampaignID, ss.AccountID, ss.StepIndex,
		ss.SendAt, models.SendStatusPending)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("enqueue_send", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("enqueue_send", err)
	}
	return affected == 1, nil
}

// ClaimDueSends moves due pending rows to in_flight and returns them.
// SKIP LOCKED keeps concurrent sweepers from claiming the same rows.
func (s *Store) ClaimDueSends(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledSend, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE scheduled_sends SET status = 'in_flight', updated_at = $1
		WHERE id IN (
			SELECT id FROM scheduled_sends
			WHERE status = 'pending' AND send_at <= $1
			ORDER BY send_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+sendColumns, now, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("claim_due_sends", err)
	}
	defer rows.Close()

	var sends []*models.ScheduledSend
	for rows.Next() {
		send, err := scanSend(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("claim_due_sends", err)
		}
		sends = append(sends, send)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("claim_due_sends", err)
	}
	return sends, nil
}

func (s *Store) MarkSendSent(ctx context.Context, id string, sentAt time.Time) error {
	return s.finishSend(ctx, "mark_send_sent", `
		UPDATE scheduled_sends SET status = 'sent', sent_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'in_flight'`, id, sentAt)
}

func (s *Store) MarkSendSkipped(ctx context.Context, id, reason string) error {
	return s.finishSend(ctx, "mark_send_skipped", `
		UPDATE scheduled_sends SET status = 'skipped', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'in_flight'`, id, reason)
}

func (s *Store) MarkSendFailed(ctx context.Context, id, reason string) error {
	return s.finishSend(ctx, "mark_send_failed", `
		UPDATE scheduled_sends SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'in_flight'`, id, reason)
}

// RescheduleSend returns an in_flight row to pending at a later slot,
// recording the reason and consuming one attempt.
func (s *Store) RescheduleSend(ctx context.Context, id string, sendAt time.Time, reason string, countAttempt bool) error {
	attemptDelta := 0
	if countAttempt {
		attemptDelta = 1
	}
	return s.finishSend(ctx, "reschedule_send", `
		UPDATE scheduled_sends SET status = 'pending', send_at = $2, last_error = $3,
			attempts = attempts + $4, updated_at = NOW()
		WHERE id = $1 AND status = 'in_flight'`, id, sendAt, reason, attemptDelta)
}

func (s *Store) finishSend(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	if affected == 0 {
		return apperrors.NewCASConflictError(op)
	}
	return nil
}

// LastScheduledAt returns the latest live slot already allocated on an
// account, the anchor the queue builder chains new slots after.
func (s *Store) LastScheduledAt(ctx context.Context, accountID string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(send_at)
		FROM scheduled_sends
		WHERE account_id = $1 AND status IN ('pending', 'in_flight')`,
		accountID).Scan(&last)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("last_scheduled_at", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// CountScheduledOnDay counts live slots already allocated to an account
// inside one local calendar day, for the per-day allocation cap.
func (s *Store) CountScheduledOnDay(ctx context.Context, accountID string, dayStart, dayEnd time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM scheduled_sends
		WHERE account_id = $1 AND status IN ('pending', 'in_flight', 'sent')
		  AND send_at >= $2 AND send_at < $3`,
		accountID, dayStart, dayEnd).Scan(&count)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("count_scheduled_on_day", err)
	}
	return count, nil
}

// RequeueStuckSends returns in_flight rows older than the lease window
// to pending. Crash recovery: a sweeper that died mid-send left the row
// claimed, and re-running the step is safe because step completion is
// recorded on the contact before the row is finished.
func (s *Store) RequeueStuckSends(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_sends SET status = 'pending', updated_at = NOW()
		WHERE status = 'in_flight' AND updated_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("requeue_stuck_sends", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("requeue_stuck_sends", err)
	}
	return int(affected), nil
}
