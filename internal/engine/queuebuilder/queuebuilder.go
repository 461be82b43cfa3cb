// internal/engine/queuebuilder/queuebuilder.go

// Package queuebuilder turns due contacts into scheduled send rows.
// Slots chain off the account's latest allocated slot so every send on
// one account keeps a jittered gap from its neighbor, and enqueueing is
// idempotent: rebuilding over the same contacts inserts nothing new.
package queuebuilder

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/common/metrics"
	"outreach-engine/internal/engine/schedule"
	"outreach-engine/internal/models"
)

type Store interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error
	ListDueContacts(ctx context.Context, campaignID string, now time.Time, limit int) ([]*models.Contact, error)
	CampaignContactCounts(ctx context.Context, campaignID string) (total, open int, err error)
	LastScheduledAt(ctx context.Context, accountID string) (*time.Time, error)
	CountScheduledOnDay(ctx context.Context, accountID string, dayStart, dayEnd time.Time) (int, error)
	EnqueueSend(ctx context.Context, ss *models.ScheduledSend) (bool, error)
}

type Builder struct {
	store     Store
	logger    logger.Logger
	batchSize int
	now       func() time.Time
}

func New(store Store, log logger.Logger, batchSize int) *Builder {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Builder{
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "queue-builder"}),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// EnqueueDueContacts plans the next step for every due contact in the
// campaign and returns how many new send rows were created.
func (b *Builder) EnqueueDueContacts(ctx context.Context, campaignID string) (int, error) {
	campaign, err := b.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Status != models.CampaignStatusActive {
		return 0, nil
	}

	now := b.now()
	contacts, err := b.store.ListDueContacts(ctx, campaignID, now, b.batchSize)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, b.retireIfFinished(ctx, campaign)
	}

	// The jitter stream is seeded from the campaign so a rebuild over
	// the same queue reproduces the same slots.
	calc, err := schedule.New(campaign.Schedule, seedFor(campaignID))
	if err != nil {
		return 0, err
	}

	anchor, err := b.anchorSlot(ctx, campaign.AccountID, calc, now)
	if err != nil {
		return 0, err
	}

	alloc := newDayAllocator(b.store, campaign.AccountID, calc)
	created := 0
	for _, contact := range contacts {
		step, ok := nextStep(campaign, contact)
		if !ok {
			continue
		}

		slot, err := alloc.place(ctx, calc.NextSlot(anchor))
		if err != nil {
			return created, err
		}
		anchor = slot

		inserted, err := b.store.EnqueueSend(ctx, &models.ScheduledSend{
			ID:         uuid.New().String(),
			ContactID:  contact.ID,
			CampaignID: campaign.ID,
			AccountID:  campaign.AccountID,
			StepIndex:  step,
			SendAt:     slot,
			Status:     models.SendStatusPending,
		})
		if err != nil {
			return created, err
		}
		if inserted {
			created++
			metrics.ContactsEnqueued.WithLabelValues(string(campaign.Type)).Inc()
		}
	}

	if created > 0 {
		b.logger.Info("queue built", map[string]interface{}{
			"campaignId": campaignID,
			"created":    created,
			"examined":   len(contacts),
		})
	}
	return created, nil
}

// retireIfFinished marks a campaign completed once every contact it ever
// enrolled has reached a terminal state. Campaigns that have not enrolled
// anyone yet are left alone.
func (b *Builder) retireIfFinished(ctx context.Context, campaign *models.Campaign) error {
	total, open, err := b.store.CampaignContactCounts(ctx, campaign.ID)
	if err != nil {
		return err
	}
	if total == 0 || open > 0 {
		return nil
	}

	if err := b.store.UpdateCampaignStatus(ctx, campaign.ID, models.CampaignStatusCompleted); err != nil {
		return err
	}
	b.logger.Info("campaign completed", map[string]interface{}{
		"campaignId": campaign.ID,
		"contacts":   total,
	})
	return nil
}

// anchorSlot picks where new slots start chaining: after the latest
// live slot on the account, or at the next window opening when the
// queue is empty or its tail is in the past.
func (b *Builder) anchorSlot(ctx context.Context, accountID string, calc *schedule.Calculator, now time.Time) (time.Time, error) {
	last, err := b.store.LastScheduledAt(ctx, accountID)
	if err != nil {
		return time.Time{}, err
	}
	if last != nil && last.After(now) {
		return *last, nil
	}
	return calc.WindowOpen(now), nil
}

// nextStep resolves which step the contact is due for, or false when
// the contact is not the queue builder's to advance.
func nextStep(campaign *models.Campaign, contact *models.Contact) (int, bool) {
	var step int
	switch contact.Status {
	case models.ContactStatusNotStarted:
		step = 0
	case models.ContactStatusAccepted, models.ContactStatusStepSent:
		step = contact.StepIndex + 1
	default:
		// awaiting_acceptance is the scanner's concern; quota_blocked
		// contacts already own a parked send row.
		return 0, false
	}
	if step >= len(campaign.Steps) {
		return 0, false
	}
	return step, true
}

// dayAllocator enforces the per-day slot cap, counting both slots
// already persisted and slots placed in the current batch.
type dayAllocator struct {
	store     Store
	accountID string
	calc      *schedule.Calculator
	counts    map[string]int
}

func newDayAllocator(store Store, accountID string, calc *schedule.Calculator) *dayAllocator {
	return &dayAllocator{
		store:     store,
		accountID: accountID,
		calc:      calc,
		counts:    make(map[string]int),
	}
}

// place returns the first slot at or after the candidate whose day has
// capacity, rolling the slot forward a day at a time when full.
func (a *dayAllocator) place(ctx context.Context, slot time.Time) (time.Time, error) {
	limit := a.calc.Policy().MaxSendsPerDay
	for {
		dayStart, dayEnd := a.calc.DayBounds(slot)
		key := dayStart.Format("2006-01-02")

		if _, seen := a.counts[key]; !seen {
			existing, err := a.store.CountScheduledOnDay(ctx, a.accountID, dayStart, dayEnd)
			if err != nil {
				return time.Time{}, err
			}
			a.counts[key] = existing
		}

		if a.counts[key] < limit {
			a.counts[key]++
			return slot, nil
		}
		slot = a.calc.NextWorkdayStart(slot, 1)
	}
}

func seedFor(campaignID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(campaignID))
	return int64(h.Sum64())
}
