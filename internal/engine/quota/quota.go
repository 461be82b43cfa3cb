// internal/engine/quota/quota.go

// Package quota enforces per-account daily and weekly send limits.
// Counters live on the account row and are only ever mutated through a
// conditional UPDATE, so concurrent sweepers cannot oversend.
package quota

import (
	"context"
	"time"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/common/metrics"
	"outreach-engine/internal/engine/schedule"
	"outreach-engine/internal/models"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ReserveSendSlot(ctx context.Context, accountID string, dayStart, weekStart, now time.Time) (bool, error)
	RefundSendSlot(ctx context.Context, accountID string) error
	SyncQuotaExhausted(ctx context.Context, accountID, window string) error
}

// Reservation is the outcome of a reserve attempt. When denied,
// RetryAfter is the window boundary at which the same reservation
// would be granted again.
type Reservation struct {
	Allowed    bool
	Reason     apperrors.ErrorCode
	RetryAfter time.Time
}

// Tracker hands out send slots against account quotas.
type Tracker struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(store Store, log logger.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "quota"}),
		now:    time.Now,
	}
}

// TryReserveSend claims one send slot on the account. The reserve is
// speculative: a send that never reaches the provider should be handed
// back with Refund. A denied reservation is not an error.
func (t *Tracker) TryReserveSend(ctx context.Context, accountID string) (*Reservation, error) {
	account, err := t.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	loc := account.Location()
	now := t.now()
	dayStart := schedule.StartOfDay(now, loc)
	weekStart := schedule.StartOfWeek(now, loc, account.WeekStartDay)

	granted, err := t.store.ReserveSendSlot(ctx, accountID, dayStart, weekStart, now)
	if err != nil {
		return nil, err
	}
	if granted {
		return &Reservation{Allowed: true}, nil
	}

	// The CAS refused: work out which window is closed so the caller
	// can park the send at the right boundary. Counters read here may
	// lag the refusing UPDATE by a moment, which only affects the
	// reported reason, not correctness.
	reservation := t.classifyDenial(account, now, dayStart, weekStart)
	metrics.QuotaBlocked.WithLabelValues(windowLabel(reservation.Reason)).Inc()

	t.logger.Info("send slot denied", map[string]interface{}{
		"accountId":  accountID,
		"reason":     string(reservation.Reason),
		"retryAfter": reservation.RetryAfter,
	})
	return reservation, nil
}

func (t *Tracker) classifyDenial(account *models.Account, now, dayStart, weekStart time.Time) *Reservation {
	if !account.Active || account.ConnectionStatus != models.ConnectionStatusConnected {
		return &Reservation{
			Allowed: false,
			Reason:  apperrors.ErrCodeAccountDisconnected,
			// No boundary resets a disconnect; retry when reconnected.
			RetryAfter: now.Add(time.Hour),
		}
	}

	weekCountLive := account.LastSendDate != nil && !account.LastSendDate.Before(weekStart)
	if weekCountLive && account.SentThisWeek >= account.WeeklyLimit {
		return &Reservation{
			Allowed:    false,
			Reason:     apperrors.ErrCodeQuotaWeeklyExceeded,
			RetryAfter: weekStart.AddDate(0, 0, 7),
		}
	}

	return &Reservation{
		Allowed:    false,
		Reason:     apperrors.ErrCodeQuotaDailyExceeded,
		RetryAfter: dayStart.AddDate(0, 0, 1),
	}
}

func windowLabel(code apperrors.ErrorCode) string {
	switch code {
	case apperrors.ErrCodeQuotaWeeklyExceeded:
		return "weekly"
	case apperrors.ErrCodeAccountDisconnected:
		return "disconnected"
	default:
		return "daily"
	}
}

// Refund returns an unused reserved slot.
func (t *Tracker) Refund(ctx context.Context, accountID string) error {
	return t.store.RefundSendSlot(ctx, accountID)
}

// ReconcileProviderLimit aligns local counters after the provider
// rejected a send for quota, so subsequent reserves stop granting slots
// the provider would refuse. Returns the boundary to park sends at.
func (t *Tracker) ReconcileProviderLimit(ctx context.Context, accountID string, code apperrors.ErrorCode) (time.Time, error) {
	account, err := t.store.GetAccount(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}

	loc := account.Location()
	now := t.now()

	switch code {
	case apperrors.ErrCodeQuotaWeeklyExceeded:
		if err := t.store.SyncQuotaExhausted(ctx, accountID, "weekly"); err != nil {
			return time.Time{}, err
		}
		return schedule.StartOfWeek(now, loc, account.WeekStartDay).AddDate(0, 0, 7), nil
	default:
		if err := t.store.SyncQuotaExhausted(ctx, accountID, "daily"); err != nil {
			return time.Time{}, err
		}
		return schedule.StartOfDay(now, loc).AddDate(0, 0, 1), nil
	}
}
