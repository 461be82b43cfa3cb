// internal/engine/scanner/scanner.go

// Package scanner runs the engine's periodic work: the sweep loop that
// executes due sends, the queue-builder pass that plans new sends for
// every active campaign, and the acceptance poll for connector invites.
package scanner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/models"
)

// CampaignLister enumerates campaigns the queue builder should plan.
type CampaignLister interface {
	ListActiveCampaigns(ctx context.Context) ([]*models.Campaign, error)
}

// Builder plans sends for one campaign.
type Builder interface {
	EnqueueDueContacts(ctx context.Context, campaignID string) (int, error)
}

// Sweeper executes due sends and polls invite acceptances.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
	CheckAcceptances(ctx context.Context) (int, error)
}

type Config struct {
	// ScannerCron fires the acceptance poll (default every 2 hours).
	ScannerCron string
	// QueueBuilderCron fires queue building (default every 5 minutes).
	QueueBuilderCron string
	// SweepInterval paces the send sweep loop.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ScannerCron == "" {
		c.ScannerCron = "0 */2 * * *"
	}
	if c.QueueBuilderCron == "" {
		c.QueueBuilderCron = "*/5 * * * *"
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// Runner owns the cron schedule and the sweep loop.
type Runner struct {
	campaigns CampaignLister
	builder   Builder
	sweeper   Sweeper
	logger    logger.Logger
	cfg       Config

	cron *cron.Cron
	done chan struct{}
}

func NewRunner(campaigns CampaignLister, builder Builder, sweeper Sweeper, log logger.Logger, cfg Config) *Runner {
	return &Runner{
		campaigns: campaigns,
		builder:   builder,
		sweeper:   sweeper,
		logger:    log.WithFields(map[string]interface{}{"component": "scanner"}),
		cfg:       cfg.withDefaults(),
		done:      make(chan struct{}),
	}
}

// Start registers the cron entries and launches the sweep loop. It
// returns once everything is running; Stop or ctx cancellation winds it
// down.
func (r *Runner) Start(ctx context.Context) error {
	r.cron = cron.New()

	if _, err := r.cron.AddFunc(r.cfg.QueueBuilderCron, func() {
		r.BuildQueues(ctx)
	}); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc(r.cfg.ScannerCron, func() {
		r.PollAcceptances(ctx)
	}); err != nil {
		return err
	}

	r.cron.Start()
	go r.sweepLoop(ctx)

	r.logger.Info("scanner started", map[string]interface{}{
		"queueBuilderCron": r.cfg.QueueBuilderCron,
		"scannerCron":      r.cfg.ScannerCron,
		"sweepInterval":    r.cfg.SweepInterval.String(),
	})
	return nil
}

func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	close(r.done)
}

func (r *Runner) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			processed, err := r.sweeper.Sweep(ctx)
			if err != nil {
				r.logger.WithError(err).Error("sweep failed", nil)
				continue
			}
			if processed > 0 {
				r.logger.Debug("sweep completed", map[string]interface{}{"processed": processed})
			}
		}
	}
}

// BuildQueues runs one queue-builder pass over every active campaign.
func (r *Runner) BuildQueues(ctx context.Context) {
	campaigns, err := r.campaigns.ListActiveCampaigns(ctx)
	if err != nil {
		r.logger.WithError(err).Error("active campaign listing failed", nil)
		return
	}

	total := 0
	for _, campaign := range campaigns {
		created, err := r.builder.EnqueueDueContacts(ctx, campaign.ID)
		if err != nil {
			r.logger.WithError(err).Error("queue build failed", map[string]interface{}{
				"campaignId": campaign.ID,
			})
			continue
		}
		total += created
	}
	if total > 0 {
		r.logger.Info("queues built", map[string]interface{}{
			"campaigns": len(campaigns),
			"created":   total,
		})
	}
}

// PollAcceptances runs one acceptance-check pass.
func (r *Runner) PollAcceptances(ctx context.Context) {
	resolved, err := r.sweeper.CheckAcceptances(ctx)
	if err != nil {
		r.logger.WithError(err).Error("acceptance poll failed", nil)
		return
	}
	if resolved > 0 {
		r.logger.Info("acceptance poll completed", map[string]interface{}{"resolved": resolved})
	}
}
