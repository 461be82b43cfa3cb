// internal/engine/sequence/orchestrator.go

// Package sequence drives contacts through their campaign steps. All
// progress is persisted before a send row is finished, so a sweeper
// killed mid-step resumes without double-sending: the contact row is
// the source of truth, the send row is the work ticket.
package sequence

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/common/metrics"
	"outreach-engine/internal/engine/quota"
	"outreach-engine/internal/engine/schedule"
	"outreach-engine/internal/models"
	"outreach-engine/internal/provider"
	"outreach-engine/internal/store"
)

const leaseKeyPrefix = "outreach:send-lease:"

// Store is the persistence surface the orchestrator needs.
type Store interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	SetConnectionStatus(ctx context.Context, accountID string, status models.ConnectionStatus) error

	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)

	GetContact(ctx context.Context, id string) (*models.Contact, error)
	UpdateContact(ctx context.Context, id string, update store.ContactUpdate) error
	ListDueByStatus(ctx context.Context, status models.ContactStatus, now time.Time, limit int) ([]*models.Contact, error)
	CountActiveSequences(ctx context.Context, accountID string) (int, error)

	ClaimDueSends(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledSend, error)
	MarkSendSent(ctx context.Context, id string, sentAt time.Time) error
	MarkSendSkipped(ctx context.Context, id, reason string) error
	MarkSendFailed(ctx context.Context, id, reason string) error
	RescheduleSend(ctx context.Context, id string, sendAt time.Time, reason string, countAttempt bool) error
	RequeueStuckSends(ctx context.Context, olderThan time.Time) (int, error)
}

// QuotaTracker hands out and reconciles send slots.
type QuotaTracker interface {
	TryReserveSend(ctx context.Context, accountID string) (*quota.Reservation, error)
	Refund(ctx context.Context, accountID string) error
	ReconcileProviderLimit(ctx context.Context, accountID string, code apperrors.ErrorCode) (time.Time, error)
}

// IdentityReleaser frees dedup claims when sequences reach a terminal
// state.
type IdentityReleaser interface {
	ReleaseIdentity(ctx context.Context, identityKey string) error
}

// Config tunes sweep behavior.
type Config struct {
	BatchSize          int
	SendLeaseTTL       time.Duration
	RetryBackoff       time.Duration
	FailedCooldown     time.Duration
	MaxActiveSequences int
	// AcceptanceTimeout is how long a connector campaign waits for an
	// invite decision before giving up on the contact.
	AcceptanceTimeout time.Duration
	// WithdrawnCooldownDays is how long the provider refuses re-invites
	// after a withdrawn one.
	WithdrawnCooldownDays int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.SendLeaseTTL <= 0 {
		c.SendLeaseTTL = 2 * time.Minute
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Minute
	}
	if c.FailedCooldown <= 0 {
		c.FailedCooldown = 24 * time.Hour
	}
	if c.MaxActiveSequences <= 0 {
		c.MaxActiveSequences = 50
	}
	if c.AcceptanceTimeout <= 0 {
		c.AcceptanceTimeout = 14 * 24 * time.Hour
	}
	if c.WithdrawnCooldownDays <= 0 {
		c.WithdrawnCooldownDays = 21
	}
	return c
}

// Orchestrator executes due scheduled sends and advances contacts.
type Orchestrator struct {
	store      Store
	quota      QuotaTracker
	identities IdentityReleaser
	messenger  provider.Messenger
	redis      *redis.Client
	logger     logger.Logger
	cfg        Config
	now        func() time.Time
}

func NewOrchestrator(st Store, qt QuotaTracker, ids IdentityReleaser, messenger provider.Messenger, rdb *redis.Client, log logger.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      st,
		quota:      qt,
		identities: ids,
		messenger:  messenger,
		redis:      rdb,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// Sweep claims every due send and executes it. Stuck in_flight rows
// from a dead sweeper are recovered first. Returns how many sends were
// processed; per-send failures are logged, not fatal to the sweep.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	now := o.now()

	requeued, err := o.store.RequeueStuckSends(ctx, now.Add(-2*o.cfg.SendLeaseTTL))
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		o.logger.Warn("recovered stuck sends", map[string]interface{}{"count": requeued})
	}

	sends, err := o.store.ClaimDueSends(ctx, now, o.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, send := range sends {
		if err := o.processSend(ctx, send); err != nil {
			o.logger.WithError(err).Error("send processing failed", map[string]interface{}{
				"sendId":    send.ID,
				"contactId": send.ContactID,
				"stepIndex": send.StepIndex,
			})
		}
	}
	return len(sends), nil
}

func (o *Orchestrator) processSend(ctx context.Context, send *models.ScheduledSend) error {
	now := o.now()

	contact, err := o.store.GetContact(ctx, send.ContactID)
	if err != nil {
		return err
	}
	if contact.Status.Terminal() {
		return o.store.MarkSendSkipped(ctx, send.ID, "contact in terminal state "+string(contact.Status))
	}

	// Crash resume: step completion is recorded on the contact before
	// the send row is finished, so a re-claimed row whose step the
	// contact already carries must not send again.
	if stepDelivered(contact, send.StepIndex) {
		return o.store.MarkSendSkipped(ctx, send.ID, "step already delivered")
	}

	campaign, err := o.store.GetCampaign(ctx, send.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignStatusActive {
		return o.store.RescheduleSend(ctx, send.ID, now.Add(time.Hour), "campaign not active", false)
	}
	if send.StepIndex >= len(campaign.Steps) {
		return o.store.MarkSendSkipped(ctx, send.ID, "step index beyond campaign steps")
	}

	account, err := o.store.GetAccount(ctx, send.AccountID)
	if err != nil {
		return err
	}
	if !account.Active || account.ConnectionStatus != models.ConnectionStatusConnected {
		// Paused accounts park their queue; contacts are untouched.
		return o.store.RescheduleSend(ctx, send.ID, now.Add(time.Hour), "account not sendable", false)
	}

	calc, err := schedule.New(campaign.Schedule, scheduleSeed(campaign.ID))
	if err != nil {
		return err
	}
	if ok, reason := calc.CanSendNow(now); !ok {
		return o.store.RescheduleSend(ctx, send.ID, calc.WindowOpen(now), reason, false)
	}

	// Concurrency cap: new sequences stay queued once the account has
	// its fill of in-progress ones.
	if contact.Status == models.ContactStatusNotStarted {
		active, err := o.store.CountActiveSequences(ctx, account.ID)
		if err != nil {
			return err
		}
		metrics.SequencesActive.Set(float64(active))
		if active >= o.cfg.MaxActiveSequences {
			return o.store.RescheduleSend(ctx, send.ID, now.Add(o.cfg.SendLeaseTTL), "active sequence cap reached", false)
		}
	}

	// One send in flight per account at a time.
	acquired, err := o.acquireLease(ctx, account.ID)
	if err != nil {
		return err
	}
	if !acquired {
		return o.store.RescheduleSend(ctx, send.ID, now.Add(o.cfg.SendLeaseTTL), "account send in progress", false)
	}
	defer o.releaseLease(ctx, account.ID)

	reservation, err := o.quota.TryReserveSend(ctx, account.ID)
	if err != nil {
		return err
	}
	if !reservation.Allowed {
		return o.parkForQuota(ctx, send, contact, reservation.Reason, reservation.RetryAfter)
	}

	return o.executeSend(ctx, send, contact, campaign, account)
}

// executeSend owns the reserved quota slot: any path that does not
// deliver to the provider must hand it back.
func (o *Orchestrator) executeSend(ctx context.Context, send *models.ScheduledSend, contact *models.Contact, campaign *models.Campaign, account *models.Account) error {
	now := o.now()
	accountRef := account.ProviderAccountID
	initialInvite := campaign.Gated() && send.StepIndex == 0

	if contact.ProviderUserID == "" {
		profile, err := o.messenger.ResolveIdentifier(ctx, accountRef, publicHandle(contact))
		if err != nil {
			return o.handleSendFailure(ctx, send, contact, campaign, account, err)
		}
		contact.ProviderUserID = profile.ProviderID
		update := store.ContactUpdate{ProviderUserID: &profile.ProviderID}
		if profile.FirstName != "" && contact.FirstName == "" {
			contact.FirstName = profile.FirstName
		}
		if err := o.store.UpdateContact(ctx, contact.ID, update); err != nil {
			return o.handleSendFailure(ctx, send, contact, campaign, account, err)
		}

		if initialInvite {
			if done, err := o.applyPreSendValidation(ctx, send, contact, campaign, account, profile); done || err != nil {
				return err
			}
		}
	}

	message := RenderTemplate(campaign.Steps[send.StepIndex].Template, contact)
	start := time.Now()

	var sendErr error
	if initialInvite {
		_, sendErr = o.messenger.SendInitialContact(ctx, accountRef, contact.ProviderUserID, message)
	} else {
		sendErr = o.sendIntoConversation(ctx, accountRef, contact, campaign, message)
	}
	if sendErr != nil {
		return o.handleSendFailure(ctx, send, contact, campaign, account, sendErr)
	}

	metrics.SendDuration.WithLabelValues(string(campaign.Type)).Observe(time.Since(start).Seconds())
	metrics.SendsCompleted.WithLabelValues(string(campaign.Type), fmt.Sprintf("%d", send.StepIndex)).Inc()

	if err := o.advanceContact(ctx, send, contact, campaign, now); err != nil {
		return err
	}
	return o.store.MarkSendSent(ctx, send.ID, now)
}

// sendIntoConversation delivers a step into the contact's chat. When no
// chat exists yet on a messenger campaign, the first message itself
// opens one; the conversation id is picked up on the following step.
func (o *Orchestrator) sendIntoConversation(ctx context.Context, accountRef string, contact *models.Contact, campaign *models.Campaign, message string) error {
	if contact.ConversationID == "" {
		conversationID, err := o.messenger.FindConversation(ctx, accountRef, contact.ProviderUserID)
		if err != nil {
			if !campaign.Gated() && apperrors.IsCode(err, apperrors.ErrCodeInvalidTarget) {
				_, err = o.messenger.SendInitialContact(ctx, accountRef, contact.ProviderUserID, message)
				return err
			}
			return err
		}
		contact.ConversationID = conversationID
		if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{ConversationID: &conversationID}); err != nil {
			return err
		}
	}
	_, err := o.messenger.SendFollowUp(ctx, accountRef, contact.ConversationID, message)
	return err
}

// applyPreSendValidation handles the provider states that make a fresh
// invite wrong: already connected, an invite already pending, or a
// recently withdrawn one. Returns done=true when the send row was
// resolved without sending.
func (o *Orchestrator) applyPreSendValidation(ctx context.Context, send *models.ScheduledSend, contact *models.Contact, campaign *models.Campaign, account *models.Account, profile *provider.Profile) (bool, error) {
	now := o.now()

	switch {
	case profile.AlreadyConnected:
		// Skip the invite and treat the contact as accepted so follow-ups
		// queue immediately. Invite-only campaigns are finished outright.
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return true, err
		}
		if len(campaign.Steps) == 1 {
			if err := o.completeContact(ctx, contact); err != nil {
				return true, err
			}
			return true, o.store.MarkSendSkipped(ctx, send.ID, "already connected")
		}
		if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
			Status:       ptr(models.ContactStatusAccepted),
			NextActionAt: &now,
			LastReason:   ptr("already connected, invite skipped"),
		}); err != nil {
			return true, err
		}
		return true, o.store.MarkSendSkipped(ctx, send.ID, "already connected")

	case profile.InvitePending:
		// Someone already invited this person from the account; wait on
		// that invite instead of sending a duplicate.
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return true, err
		}
		wait := now.AddDate(0, 0, campaign.AcceptanceWaitDays())
		if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
			Status:       ptr(models.ContactStatusAwaitingAcceptance),
			NextActionAt: &wait,
			LastReason:   ptr("invite already pending"),
		}); err != nil {
			return true, err
		}
		return true, o.store.MarkSendSkipped(ctx, send.ID, "invite already pending")

	case profile.InviteWithdrawn:
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return true, err
		}
		reason := fmt.Sprintf("invite withdrawn recently, provider blocks re-invite until %s",
			now.AddDate(0, 0, o.cfg.WithdrawnCooldownDays).Format("2006-01-02"))
		if err := o.failContact(ctx, contact, reason); err != nil {
			return true, err
		}
		return true, o.store.MarkSendFailed(ctx, send.ID, reason)
	}

	return false, nil
}

// advanceContact records the delivered step and what the contact is
// waiting on next. This write lands before the send row is finalized.
func (o *Orchestrator) advanceContact(ctx context.Context, send *models.ScheduledSend, contact *models.Contact, campaign *models.Campaign, now time.Time) error {
	step := send.StepIndex
	update := store.ContactUpdate{StepIndex: &step}

	switch {
	case campaign.Gated() && step == 0:
		wait := now.AddDate(0, 0, campaign.AcceptanceWaitDays())
		update.Status = ptr(models.ContactStatusAwaitingAcceptance)
		update.NextActionAt = &wait

	case step == len(campaign.Steps)-1:
		update.Status = ptr(models.ContactStatusCompleted)
		update.ClearNextAction = true
		if err := o.identities.ReleaseIdentity(ctx, contact.IdentityKey); err != nil {
			return err
		}

	default:
		next := now.AddDate(0, 0, campaign.Steps[step+1].GapDays)
		update.Status = ptr(models.ContactStatusStepSent)
		update.NextActionAt = &next
	}

	return o.store.UpdateContact(ctx, contact.ID, update)
}

// handleSendFailure classifies a provider error by code and decides the
// fate of the send, the contact, and the account.
func (o *Orchestrator) handleSendFailure(ctx context.Context, send *models.ScheduledSend, contact *models.Contact, campaign *models.Campaign, account *models.Account, sendErr error) error {
	now := o.now()
	code := apperrors.CodeOf(sendErr)
	metrics.SendsFailed.WithLabelValues(string(campaign.Type), string(code)).Inc()

	switch code {
	case apperrors.ErrCodeQuotaDailyExceeded, apperrors.ErrCodeQuotaWeeklyExceeded:
		// The provider's counters outrank ours. Align, then park the send
		// at the window boundary.
		retryAfter, err := o.quota.ReconcileProviderLimit(ctx, account.ID, code)
		if err != nil {
			return err
		}
		return o.parkForQuota(ctx, send, contact, code, retryAfter)

	case apperrors.ErrCodeAccountDisconnected:
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return err
		}
		if err := o.store.SetConnectionStatus(ctx, account.ID, models.ConnectionStatusDisconnected); err != nil {
			return err
		}
		o.logger.Warn("account disconnected, pausing its queue", map[string]interface{}{
			"accountId": account.ID,
		})
		return o.store.RescheduleSend(ctx, send.ID, now.Add(time.Hour), "account disconnected", false)

	case apperrors.ErrCodeInvalidTarget:
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return err
		}
		reason := "target invalid: " + sendErr.Error()
		if err := o.failContact(ctx, contact, reason); err != nil {
			return err
		}
		return o.store.MarkSendFailed(ctx, send.ID, reason)

	default:
		if err := o.quota.Refund(ctx, account.ID); err != nil {
			return err
		}
		attempts := send.Attempts + 1
		if attempts >= apperrors.MaxAttempts(apperrors.ErrCodeTransientSend) {
			reason := fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, sendErr.Error())
			if err := o.failContact(ctx, contact, reason); err != nil {
				return err
			}
			return o.store.MarkSendFailed(ctx, send.ID, reason)
		}

		backoff := o.cfg.RetryBackoff * time.Duration(1<<send.Attempts)
		return o.store.RescheduleSend(ctx, send.ID, now.Add(backoff), sendErr.Error(), true)
	}
}

// parkForQuota suspends the send until the quota window reopens and
// flags the contact so operators can see why nothing is moving.
func (o *Orchestrator) parkForQuota(ctx context.Context, send *models.ScheduledSend, contact *models.Contact, code apperrors.ErrorCode, retryAfter time.Time) error {
	reason := string(code)
	if code == apperrors.ErrCodeAccountDisconnected {
		return o.store.RescheduleSend(ctx, send.ID, retryAfter, reason, false)
	}

	if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
		Status:       ptr(models.ContactStatusQuotaBlocked),
		NextActionAt: &retryAfter,
		LastReason:   &reason,
	}); err != nil {
		return err
	}
	return o.store.RescheduleSend(ctx, send.ID, retryAfter, reason, false)
}

// completeContact closes out a contact that has no further steps and
// frees its identity claim.
func (o *Orchestrator) completeContact(ctx context.Context, contact *models.Contact) error {
	if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
		Status:          ptr(models.ContactStatusCompleted),
		ClearNextAction: true,
	}); err != nil {
		return err
	}
	return o.identities.ReleaseIdentity(ctx, contact.IdentityKey)
}

// failContact moves the contact to its terminal failed state, applies
// the failed-contact cooldown stamp, and releases the identity claim.
func (o *Orchestrator) failContact(ctx context.Context, contact *models.Contact, reason string) error {
	cooldown := o.now().Add(o.cfg.FailedCooldown)
	if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
		Status:       ptr(models.ContactStatusFailed),
		NextActionAt: &cooldown,
		LastReason:   &reason,
	}); err != nil {
		return err
	}
	return o.identities.ReleaseIdentity(ctx, contact.IdentityKey)
}

// CheckAcceptances polls the provider for due awaiting-acceptance
// contacts and resolves each to accepted, declined, or a later check.
func (o *Orchestrator) CheckAcceptances(ctx context.Context) (int, error) {
	now := o.now()
	contacts, err := o.store.ListDueByStatus(ctx, models.ContactStatusAwaitingAcceptance, now, o.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, contact := range contacts {
		if err := o.checkAcceptance(ctx, contact, now); err != nil {
			o.logger.WithError(err).Error("acceptance check failed", map[string]interface{}{
				"contactId": contact.ID,
			})
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (o *Orchestrator) checkAcceptance(ctx context.Context, contact *models.Contact, now time.Time) error {
	campaign, err := o.store.GetCampaign(ctx, contact.CampaignID)
	if err != nil {
		return err
	}
	account, err := o.store.GetAccount(ctx, campaign.AccountID)
	if err != nil {
		return err
	}

	status, err := o.messenger.GetAcceptanceStatus(ctx, account.ProviderAccountID, contact.ProviderUserID)
	if err != nil {
		return err
	}

	switch status {
	case provider.AcceptanceAccepted:
		o.logger.Info("invite accepted", map[string]interface{}{
			"contactId":  contact.ID,
			"campaignId": contact.CampaignID,
		})
		// Invite-only campaigns have nothing left to send once the
		// invite is accepted.
		if contact.StepIndex+1 >= len(campaign.Steps) {
			return o.completeContact(ctx, contact)
		}
		return o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
			Status:       ptr(models.ContactStatusAccepted),
			NextActionAt: &now,
		})

	case provider.AcceptanceDeclined:
		if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
			Status:          ptr(models.ContactStatusDeclinedOrTimedOut),
			ClearNextAction: true,
			LastReason:      ptr("invite declined or withdrawn"),
		}); err != nil {
			return err
		}
		return o.identities.ReleaseIdentity(ctx, contact.IdentityKey)

	default:
		waitedSince := contact.LastActionAt
		if waitedSince != nil && now.Sub(*waitedSince) > o.cfg.AcceptanceTimeout {
			if err := o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
				Status:          ptr(models.ContactStatusDeclinedOrTimedOut),
				ClearNextAction: true,
				LastReason:      ptr("acceptance window expired"),
			}); err != nil {
				return err
			}
			return o.identities.ReleaseIdentity(ctx, contact.IdentityKey)
		}

		nextCheck := now.AddDate(0, 0, 1)
		return o.store.UpdateContact(ctx, contact.ID, store.ContactUpdate{
			NextActionAt: &nextCheck,
		})
	}
}

func (o *Orchestrator) acquireLease(ctx context.Context, accountID string) (bool, error) {
	acquired, err := o.redis.SetNX(ctx, leaseKeyPrefix+accountID, "1", o.cfg.SendLeaseTTL).Result()
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("acquire_send_lease", err)
	}
	return acquired, nil
}

func (o *Orchestrator) releaseLease(ctx context.Context, accountID string) {
	if err := o.redis.Del(ctx, leaseKeyPrefix+accountID).Err(); err != nil {
		o.logger.WithError(err).Warn("send lease release failed", map[string]interface{}{
			"accountId": accountID,
		})
	}
}

// stepDelivered reports whether the contact already carries the step.
// Quota-blocked contacts keep the step index of their last delivered
// step, so they read as not-yet-started for the step being retried.
func stepDelivered(contact *models.Contact, step int) bool {
	switch contact.Status {
	case models.ContactStatusNotStarted:
		return false
	case models.ContactStatusQuotaBlocked:
		return contact.StepIndex > step
	default:
		return contact.StepIndex >= step
	}
}

// publicHandle extracts the provider handle from the identity key
// ("in/ada-lovelace" resolves as "ada-lovelace").
func publicHandle(contact *models.Contact) string {
	key := contact.IdentityKey
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

func scheduleSeed(campaignID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(campaignID))
	return int64(h.Sum64())
}

func ptr[T any](v T) *T {
	return &v
}
