// internal/engine/dedup/dedup.go

// Package dedup guarantees one live sequence per person across all
// campaigns. Identity keys are normalized from profile URLs or emails;
// claims are atomic Redis SETNX writes so two campaigns importing the
// same person at the same moment cannot both win.
package dedup

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/common/metrics"
	"outreach-engine/internal/models"
)

const claimKeyPrefix = "outreach:identity:"

// ContactFinder looks up the live contact holding an identity key.
type ContactFinder interface {
	FindActiveByIdentity(ctx context.Context, identityKey string) (*models.Contact, error)
}

// Resolver decides whether an identity may enter a campaign.
type Resolver struct {
	redis    *redis.Client
	contacts ContactFinder
	logger   logger.Logger

	// claimTTL bounds how long an identity claim outlives its sequence
	// if the release is missed; the database backstop still holds after
	// expiry.
	claimTTL time.Duration
}

func NewResolver(rdb *redis.Client, contacts ContactFinder, log logger.Logger) *Resolver {
	return &Resolver{
		redis:    rdb,
		contacts: contacts,
		logger:   log.WithFields(map[string]interface{}{"component": "dedup"}),
		claimTTL: 90 * 24 * time.Hour,
	}
}

// NormalizeIdentity canonicalizes a raw identifier into the dedup key.
// Emails fold to lowercase; profile URLs lose scheme, host casing,
// query, fragment, and trailing slash so every spelling of the same
// profile maps to one key.
func NormalizeIdentity(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "@") && !strings.Contains(raw, "/") {
		return strings.ToLower(raw)
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	return strings.ToLower(strings.TrimLeft(path, "/"))
}

// IsEligible reports whether the identity may be enqueued into the
// campaign. An identity already owned by a non-terminal contact in any
// campaign is rejected; terminal contacts release their identity.
func (r *Resolver) IsEligible(ctx context.Context, identityKey, campaignID string) (bool, error) {
	if identityKey == "" {
		return false, nil
	}

	existing, err := r.contacts.FindActiveByIdentity(ctx, identityKey)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, nil
	}

	metrics.DedupRejected.WithLabelValues("active_elsewhere").Inc()
	r.logger.Debug("identity already in an active sequence", map[string]interface{}{
		"identityKey":  identityKey,
		"campaignId":   campaignID,
		"ownedBy":      existing.CampaignID,
		"ownerContact": existing.ID,
	})
	return false, nil
}

// ClaimIdentity atomically takes the identity for a campaign. Exactly
// one concurrent caller wins; the rest get a DUPLICATE_CONTACT error.
func (r *Resolver) ClaimIdentity(ctx context.Context, identityKey, campaignID string) error {
	claimed, err := r.redis.SetNX(ctx, claimKeyPrefix+identityKey, campaignID, r.claimTTL).Result()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("claim_identity", err)
	}
	if claimed {
		return nil
	}

	owner, err := r.redis.Get(ctx, claimKeyPrefix+identityKey).Result()
	if err != nil && err != redis.Nil {
		return apperrors.NewQueryExecutionFailedError("claim_identity", err)
	}
	if owner == campaignID {
		// Re-import into the same campaign is a no-op, not a conflict.
		return nil
	}

	metrics.DedupRejected.WithLabelValues("claim_lost").Inc()
	return apperrors.NewDuplicateContactError(identityKey, owner)
}

// ReleaseIdentity frees the claim after the contact's sequence reaches
// a terminal state, allowing future campaigns to target the person.
func (r *Resolver) ReleaseIdentity(ctx context.Context, identityKey string) error {
	if err := r.redis.Del(ctx, claimKeyPrefix+identityKey).Err(); err != nil {
		return apperrors.NewQueryExecutionFailedError("release_identity", err)
	}
	return nil
}
