// internal/store/contacts.go
package store

import (
	"context"
	"database/sql"
	"time"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/models"
)

const contactColumns = `id, campaign_id, first_name, last_name, company_name, title,
	profile_url, identity_key, provider_user_id, conversation_id,
	status, step_index, next_action_at, last_reason, last_action_at,
	created_at, updated_at`

func scanContact(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Contact, error) {
	var c models.Contact
	var companyName, title, providerUserID, conversationID, lastReason sql.NullString
	err := scanner.Scan(
		&c.ID, &c.CampaignID, &c.FirstName, &c.LastName, &companyName, &title,
		&c.ProfileURL, &c.IdentityKey, &providerUserID, &conversationID,
		&c.Status, &c.StepIndex, &c.NextActionAt, &lastReason, &c.LastActionAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CompanyName = companyName.String
	c.Title = title.String
	c.ProviderUserID = providerUserID.String
	c.ConversationID = conversationID.String
	c.LastReason = lastReason.String
	return &c, nil
}

// CreateContact inserts a contact unless its identity key is already
// claimed by a non-terminal contact anywhere. The partial unique index
// on identity_key is the database backstop behind the Redis claim.
// Returns false when the insert was suppressed by the conflict.
func (s *Store) CreateContact(ctx context.Context, c *models.Contact) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, campaign_id, first_name, last_name, company_name, title,
			profile_url, identity_key, status, step_index, next_action_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (identity_key) WHERE status NOT IN ('completed', 'failed', 'declined_or_timed_out')
		DO NOTHING`,
		c.ID, c.CampaignID, c.FirstName, c.LastName,
		nullable(c.CompanyName), nullable(c.Title),
		c.ProfileURL, c.IdentityKey, c.Status, c.StepIndex, c.NextActionAt)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("create_contact", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("create_contact", err)
	}
	return affected == 1, nil
}

func (s *Store) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1`, id)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_contact", err)
	}
	return contact, nil
}

// FindActiveByIdentity returns the non-terminal contact holding an
// identity key, or nil when the identity is free.
func (s *Store) FindActiveByIdentity(ctx context.Context, identityKey string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE identity_key = $1
		  AND status NOT IN ('completed', 'failed', 'declined_or_timed_out')
		LIMIT 1`, identityKey)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("find_active_by_identity", err)
	}
	return contact, nil
}

// ContactUpdate carries the fields the orchestrator advances after a
// step outcome. Nil pointers leave the column untouched.
type ContactUpdate struct {
	Status         *models.ContactStatus
	StepIndex      *int
	NextActionAt   *time.Time
	ClearNextAction bool
	LastReason     *string
	ProviderUserID *string
	ConversationID *string
}

func (s *Store) UpdateContact(ctx context.Context, id string, update ContactUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contacts SET
			status           = COALESCE($2, status),
			step_index       = COALESCE($3, step_index),
			next_action_at   = CASE WHEN $4 THEN NULL ELSE COALESCE($5, next_action_at) END,
			last_reason      = COALESCE($6, last_reason),
			provider_user_id = COALESCE($7, provider_user_id),
			conversation_id  = COALESCE($8, conversation_id),
			last_action_at   = NOW(),
			updated_at       = NOW()
		WHERE id = $1`,
		id, update.Status, update.StepIndex,
		update.ClearNextAction, update.NextActionAt,
		update.LastReason, update.ProviderUserID, update.ConversationID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update_contact", err)
	}
	return nil
}

// ListDueContacts returns non-terminal contacts in a campaign whose
// next_action_at has elapsed (or was never set), the scanner's work set.
func (s *Store) ListDueContacts(ctx context.Context, campaignID string, now time.Time, limit int) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE campaign_id = $1
		  AND status NOT IN ('completed', 'failed', 'declined_or_timed_out')
		  AND (next_action_at IS NULL OR next_action_at <= $2)
		ORDER BY created_at
		LIMIT $3`, campaignID, now, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_due_contacts", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_due_contacts", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_due_contacts", err)
	}
	return contacts, nil
}

// ListDueByStatus returns contacts in one status, across campaigns,
// whose next_action_at has elapsed. The scanner polls awaiting
// acceptance contacts through this.
func (s *Store) ListDueByStatus(ctx context.Context, status models.ContactStatus, now time.Time, limit int) ([]*models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE status = $1
		  AND (next_action_at IS NULL OR next_action_at <= $2)
		ORDER BY next_action_at NULLS FIRST
		LIMIT $3`, status, now, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_due_by_status", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_due_by_status", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_due_by_status", err)
	}
	return contacts, nil
}

// CampaignContactCounts reports how many contacts a campaign holds and
// how many of them are still open (non-terminal). A campaign whose open
// count drops to zero has finished its run.
func (s *Store) CampaignContactCounts(ctx context.Context, campaignID string) (total, open int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status NOT IN ('completed', 'failed', 'declined_or_timed_out'))
		FROM contacts
		WHERE campaign_id = $1`, campaignID).Scan(&total, &open)
	if err != nil {
		return 0, 0, apperrors.NewQueryExecutionFailedError("campaign_contact_counts", err)
	}
	return total, open, nil
}

// CountActiveSequences counts non-terminal, started contacts across all
// campaigns on one account.
func (s *Store) CountActiveSequences(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM contacts c
		JOIN campaigns cp ON cp.id = c.campaign_id
		WHERE cp.account_id = $1
		  AND c.status NOT IN ('not_started', 'completed', 'failed', 'declined_or_timed_out')`,
		accountID).Scan(&count)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("count_active_sequences", err)
	}
	return count, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
