// internal/models/campaign.go
package models

import "time"

// CampaignType selects the sequence shape: connector campaigns gate
// follow-ups behind invite acceptance, messenger campaigns do not.
type CampaignType string

const (
	CampaignTypeConnector CampaignType = "connector"
	CampaignTypeMessenger CampaignType = "messenger"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// MessageStep is one templated step of a sequence. Step 0 is the initial
// contact (the invite message for connector campaigns); steps 1..N are
// follow-ups sent GapDays after the previous step.
type MessageStep struct {
	Template string `json:"template"`
	GapDays  int    `json:"gapDays"`
}

type Campaign struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      CampaignType   `json:"type"`
	Status    CampaignStatus `json:"status"`
	AccountID string         `json:"accountId"`
	Steps     []MessageStep  `json:"steps"`
	Schedule  SchedulePolicy `json:"schedule"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AcceptanceWaitDays is how long a connector campaign waits for the target
// to accept the invite before checking, per the default connector cadence.
func (c *Campaign) AcceptanceWaitDays() int {
	if len(c.Steps) > 1 && c.Steps[1].GapDays > 0 {
		return c.Steps[1].GapDays
	}
	return 2
}

// Gated reports whether follow-ups require an accepted invite first.
func (c *Campaign) Gated() bool {
	return c.Type == CampaignTypeConnector
}

// SchedulePolicy constrains when a campaign may send: timezone, business
// hours, allowed weekdays, and a country holiday calendar.
type SchedulePolicy struct {
	Timezone      string `json:"timezone"`
	WorkStartHour int    `json:"workStartHour"`
	WorkEndHour   int    `json:"workEndHour"`
	WeekdaysOnly  bool   `json:"weekdaysOnly"`
	SkipHolidays  bool   `json:"skipHolidays"`
	CountryCode   string `json:"countryCode"`

	// JitterMinMinutes and JitterMaxMinutes bound the randomized spacing
	// between consecutive sends on one account.
	JitterMinMinutes int `json:"jitterMinMinutes"`
	JitterMaxMinutes int `json:"jitterMaxMinutes"`

	// MaxSendsPerDay caps how many slots one account may be allocated per
	// calendar day at schedule-build time.
	MaxSendsPerDay int `json:"maxSendsPerDay"`
}

// Normalized returns the policy with defaults applied to zero fields.
func (p SchedulePolicy) Normalized() SchedulePolicy {
	if p.Timezone == "" {
		p.Timezone = "America/Los_Angeles"
	}
	if p.WorkStartHour == 0 && p.WorkEndHour == 0 {
		p.WorkStartHour = 9
		p.WorkEndHour = 17
	}
	if p.CountryCode == "" {
		p.CountryCode = "INTL"
	}
	if p.JitterMinMinutes == 0 && p.JitterMaxMinutes == 0 {
		p.JitterMinMinutes = 20
		p.JitterMaxMinutes = 45
	}
	if p.MaxSendsPerDay == 0 {
		p.MaxSendsPerDay = 20
	}
	return p
}
