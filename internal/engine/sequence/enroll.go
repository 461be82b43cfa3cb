// internal/engine/sequence/enroll.go
package sequence

import (
	"context"

	"github.com/google/uuid"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/common/logger"
	"outreach-engine/internal/engine/dedup"
	"outreach-engine/internal/models"
)

// ContactInput is one person as supplied by an import.
type ContactInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName,omitempty"`
	Title       string `json:"title,omitempty"`
	ProfileURL  string `json:"profileUrl"`
}

// EnrollResult summarizes one import batch.
type EnrollResult struct {
	Enrolled   int
	Duplicates int
	Invalid    int
}

// IdentityGate is the dedup surface enrollment needs.
type IdentityGate interface {
	IsEligible(ctx context.Context, identityKey, campaignID string) (bool, error)
	ClaimIdentity(ctx context.Context, identityKey, campaignID string) error
	ReleaseIdentity(ctx context.Context, identityKey string) error
}

// ContactCreator persists enrolled contacts.
type ContactCreator interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	CreateContact(ctx context.Context, c *models.Contact) (bool, error)
}

// Enroller admits contacts into campaigns, one live sequence per
// identity across the whole engine.
type Enroller struct {
	store      ContactCreator
	identities IdentityGate
	logger     logger.Logger
}

func NewEnroller(store ContactCreator, identities IdentityGate, log logger.Logger) *Enroller {
	return &Enroller{
		store:      store,
		identities: identities,
		logger:     log.WithFields(map[string]interface{}{"component": "enroller"}),
	}
}

// Enroll imports a batch of contacts into the campaign. Duplicates and
// invalid rows are counted, not fatal: an import keeps going past them.
func (e *Enroller) Enroll(ctx context.Context, campaignID string, inputs []ContactInput) (*EnrollResult, error) {
	campaign, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	result := &EnrollResult{}
	for _, input := range inputs {
		identityKey := dedup.NormalizeIdentity(input.ProfileURL)
		if identityKey == "" {
			result.Invalid++
			continue
		}

		eligible, err := e.identities.IsEligible(ctx, identityKey, campaign.ID)
		if err != nil {
			return result, err
		}
		if !eligible {
			result.Duplicates++
			continue
		}

		if err := e.identities.ClaimIdentity(ctx, identityKey, campaign.ID); err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeDuplicateContact) {
				result.Duplicates++
				continue
			}
			return result, err
		}

		created, err := e.store.CreateContact(ctx, &models.Contact{
			ID:          uuid.New().String(),
			CampaignID:  campaign.ID,
			FirstName:   input.FirstName,
			LastName:    input.LastName,
			CompanyName: input.CompanyName,
			Title:       input.Title,
			ProfileURL:  input.ProfileURL,
			IdentityKey: identityKey,
			Status:      models.ContactStatusNotStarted,
		})
		if err != nil {
			return result, err
		}
		if !created {
			// The database backstop caught an identity the claim missed
			// (expired TTL); hand the claim back.
			if err := e.identities.ReleaseIdentity(ctx, identityKey); err != nil {
				return result, err
			}
			result.Duplicates++
			continue
		}
		result.Enrolled++
	}

	e.logger.Info("enrollment finished", map[string]interface{}{
		"campaignId": campaignID,
		"enrolled":   result.Enrolled,
		"duplicates": result.Duplicates,
		"invalid":    result.Invalid,
	})
	return result, nil
}
