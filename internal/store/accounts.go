// internal/store/accounts.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/models"
)

const accountColumns = `id, name, provider_account_id, daily_limit, weekly_limit,
	sent_today, sent_this_week, last_send_date, timezone, week_start_day,
	active, connection_status, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var weekStart int
	err := row.Scan(
		&a.ID, &a.Name, &a.ProviderAccountID, &a.DailyLimit, &a.WeeklyLimit,
		&a.SentToday, &a.SentThisWeek, &a.LastSendDate, &a.Timezone, &weekStart,
		&a.Active, &a.ConnectionStatus, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.WeekStartDay = time.Weekday(weekStart)
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, provider_account_id, daily_limit, weekly_limit,
			sent_today, sent_this_week, timezone, week_start_day, active, connection_status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $8, $9, NOW(), NOW())`,
		a.ID, a.Name, a.ProviderAccountID, a.DailyLimit, a.WeeklyLimit,
		a.Timezone, int(a.WeekStartDay), a.Active, a.ConnectionStatus)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("create_account", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_account", err)
	}
	return account, nil
}

// ReserveSendSlot atomically claims one unit of the account's daily and
// weekly quota. dayStart and weekStart are the boundaries of the current
// local windows; a last_send_date before a boundary means that window's
// counter rolled over and restarts at 1. Returns false when either
// window is exhausted or the account cannot send.
func (s *Store) ReserveSendSlot(ctx context.Context, accountID string, dayStart, weekStart, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			sent_today     = CASE WHEN last_send_date IS NULL OR last_send_date < $2 THEN 1 ELSE sent_today + 1 END,
			sent_this_week = CASE WHEN last_send_date IS NULL OR last_send_date < $3 THEN 1 ELSE sent_this_week + 1 END,
			last_send_date = $4,
			updated_at     = $4
		WHERE id = $1
		  AND active
		  AND connection_status = 'connected'
		  AND (last_send_date IS NULL OR last_send_date < $2 OR sent_today < daily_limit)
		  AND (last_send_date IS NULL OR last_send_date < $3 OR sent_this_week < weekly_limit)`,
		accountID, dayStart, weekStart, now)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("reserve_send_slot", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("reserve_send_slot", err)
	}
	return affected == 1, nil
}

// RefundSendSlot returns a reserved unit after a send that never reached
// the provider. Counters never go below zero.
func (s *Store) RefundSendSlot(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			sent_today     = GREATEST(sent_today - 1, 0),
			sent_this_week = GREATEST(sent_this_week - 1, 0),
			updated_at     = NOW()
		WHERE id = $1`, accountID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("refund_send_slot", err)
	}
	return nil
}

// SyncQuotaExhausted pins the local counter for a window to its limit
// after the provider reported that window exhausted, so local reserves
// stop granting slots the provider would reject.
func (s *Store) SyncQuotaExhausted(ctx context.Context, accountID, window string) error {
	var query string
	switch window {
	case "daily":
		query = `UPDATE accounts SET sent_today = daily_limit, updated_at = NOW() WHERE id = $1`
	case "weekly":
		query = `UPDATE accounts SET sent_this_week = weekly_limit, sent_today = daily_limit, updated_at = NOW() WHERE id = $1`
	default:
		return apperrors.NewQueryExecutionFailedError("sync_quota_exhausted", sql.ErrNoRows)
	}

	if _, err := s.db.ExecContext(ctx, query, accountID); err != nil {
		return apperrors.NewQueryExecutionFailedError("sync_quota_exhausted", err)
	}
	return nil
}

// SetConnectionStatus updates the account's provider connection state.
// Disconnecting pauses all sends on the account without failing contacts.
func (s *Store) SetConnectionStatus(ctx context.Context, accountID string, status models.ConnectionStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET connection_status = $2, updated_at = NOW()
		WHERE id = $1`, accountID, status)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("set_connection_status", err)
	}

	s.logger.Info("account connection status updated", map[string]interface{}{
		"accountId": accountID,
		"status":    string(status),
	})
	return nil
}
