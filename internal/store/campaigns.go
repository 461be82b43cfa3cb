// internal/store/campaigns.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	apperrors "outreach-engine/internal/common/errors"
	"outreach-engine/internal/models"
)

const campaignColumns = `id, name, type, status, account_id, steps, schedule, created_at, updated_at`

func scanCampaign(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	var c models.Campaign
	var stepsRaw, scheduleRaw []byte
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Type, &c.Status, &c.AccountID,
		&stepsRaw, &scheduleRaw, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsRaw, &c.Steps); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scheduleRaw, &c.Schedule); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1`, id)

	campaign, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_campaign", err)
	}
	return campaign, nil
}

func (s *Store) ListActiveCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'active'
		ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_active_campaigns", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_active_campaigns", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_active_campaigns", err)
	}
	return campaigns, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	stepsRaw, err := json.Marshal(c.Steps)
	if err != nil {
		return err
	}
	scheduleRaw, err := json.Marshal(c.Schedule)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, type, status, account_id, steps, schedule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		c.ID, c.Name, c.Type, c.Status, c.AccountID, stepsRaw, scheduleRaw)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("create_campaign", err)
	}
	return nil
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $2, updated_at = NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update_campaign_status", err)
	}
	return nil
}
