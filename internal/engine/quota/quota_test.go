// internal/engine/quota/quota_test.go
package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/models"
)

type fakeStore struct {
	account       *models.Account
	grant         bool
	reserveCalls  int
	refundCalls   int
	syncedWindows []string

	gotDayStart  time.Time
	gotWeekStart time.Time
}

func (f *fakeStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return f.account, nil
}

func (f *fakeStore) ReserveSendSlot(ctx context.Context, accountID string, dayStart, weekStart, now time.Time) (bool, error) {
	f.reserveCalls++
	f.gotDayStart = dayStart
	f.gotWeekStart = weekStart
	return f.grant, nil
}

func (f *fakeStore) RefundSendSlot(ctx context.Context, accountID string) error {
	f.refundCalls++
	return nil
}

func (f *fakeStore) SyncQuotaExhausted(ctx context.Context, accountID, window string) error {
	f.syncedWindows = append(f.syncedWindows, window)
	return nil
}

func berlinAccount() *models.Account {
	return &models.Account{
		ID:               "acc-1",
		DailyLimit:       20,
		WeeklyLimit:      100,
		Timezone:         "Europe/Berlin",
		WeekStartDay:     time.Monday,
		Active:           true,
		ConnectionStatus: models.ConnectionStatusConnected,
	}
}

func newTestTracker(store *fakeStore, at time.Time) *Tracker {
	tracker := NewTracker(store, logger.NewNoOpLogger())
	tracker.now = func() time.Time { return at }
	return tracker
}

func TestTryReserveSendGranted(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	// Wednesday 2025-03-12 14:00 Berlin.
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	store := &fakeStore{account: berlinAccount(), grant: true}
	tracker := newTestTracker(store, now)

	reservation, err := tracker.TryReserveSend(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, reservation.Allowed)
	assert.Equal(t, 1, store.reserveCalls)

	// Window boundaries are computed in the account's timezone.
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, berlin), store.gotDayStart)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, berlin), store.gotWeekStart)
}

func TestTryReserveSendDailyDenied(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	lastSend := now.Add(-time.Hour)
	account := berlinAccount()
	account.SentToday = 20
	account.SentThisWeek = 40
	account.LastSendDate = &lastSend

	store := &fakeStore{account: account, grant: false}
	tracker := newTestTracker(store, now)

	reservation, err := tracker.TryReserveSend(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.False(t, reservation.Allowed)
	assert.Equal(t, apperrors.ErrCodeQuotaDailyExceeded, reservation.Reason)
	assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, berlin), reservation.RetryAfter)
}

func TestTryReserveSendWeeklyDenied(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	lastSend := now.Add(-time.Hour)
	account := berlinAccount()
	account.SentToday = 5
	account.SentThisWeek = 100
	account.LastSendDate = &lastSend

	store := &fakeStore{account: account, grant: false}
	tracker := newTestTracker(store, now)

	reservation, err := tracker.TryReserveSend(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.False(t, reservation.Allowed)
	assert.Equal(t, apperrors.ErrCodeQuotaWeeklyExceeded, reservation.Reason)
	// Parked until the following Monday.
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, berlin), reservation.RetryAfter)
}

func TestTryReserveSendStaleWeekCounterDefersToDaily(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	// A week counter at the limit from a previous week has rolled over
	// and cannot be the reason for a denial.
	lastSend := time.Date(2025, 3, 7, 12, 0, 0, 0, berlin)
	account := berlinAccount()
	account.SentThisWeek = 100
	account.LastSendDate = &lastSend

	store := &fakeStore{account: account, grant: false}
	tracker := newTestTracker(store, now)

	reservation, err := tracker.TryReserveSend(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, apperrors.ErrCodeQuotaDailyExceeded, reservation.Reason)
}

func TestTryReserveSendDisconnectedAccount(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	account := berlinAccount()
	account.ConnectionStatus = models.ConnectionStatusDisconnected

	store := &fakeStore{account: account, grant: false}
	tracker := newTestTracker(store, now)

	reservation, err := tracker.TryReserveSend(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.False(t, reservation.Allowed)
	assert.Equal(t, apperrors.ErrCodeAccountDisconnected, reservation.Reason)
}

func TestRefund(t *testing.T) {
	store := &fakeStore{account: berlinAccount()}
	tracker := NewTracker(store, logger.NewNoOpLogger())

	require.NoError(t, tracker.Refund(context.Background(), "acc-1"))
	assert.Equal(t, 1, store.refundCalls)
}

func TestReconcileProviderLimit(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")
	now := time.Date(2025, 3, 12, 14, 0, 0, 0, berlin)

	t.Run("daily", func(t *testing.T) {
		store := &fakeStore{account: berlinAccount()}
		tracker := newTestTracker(store, now)

		retryAfter, err := tracker.ReconcileProviderLimit(context.Background(), "acc-1", apperrors.ErrCodeQuotaDailyExceeded)
		require.NoError(t, err)
		assert.Equal(t, []string{"daily"}, store.syncedWindows)
		assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, berlin), retryAfter)
	})

	t.Run("weekly", func(t *testing.T) {
		store := &fakeStore{account: berlinAccount()}
		tracker := newTestTracker(store, now)

		retryAfter, err := tracker.ReconcileProviderLimit(context.Background(), "acc-1", apperrors.ErrCodeQuotaWeeklyExceeded)
		require.NoError(t, err)
		assert.Equal(t, []string{"weekly"}, store.syncedWindows)
		assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, berlin), retryAfter)
	})
}
