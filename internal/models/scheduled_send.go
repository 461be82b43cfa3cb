// internal/models/scheduled_send.go
package models

import "time"

type SendStatus string

const (
	SendStatusPending  SendStatus = "pending"
	SendStatusInFlight SendStatus = "in_flight"
	SendStatusSent     SendStatus = "sent"
	SendStatusSkipped  SendStatus = "skipped"
	SendStatusFailed   SendStatus = "failed"
)

// ScheduledSend is one planned delivery of one sequence step to one
// contact. The (ContactID, StepIndex) pair is unique among non-terminal
// rows, which is what makes re-enqueueing idempotent.
type ScheduledSend struct {
	ID         string     `json:"id"`
	ContactID  string     `json:"contactId"`
	CampaignID string     `json:"campaignId"`
	AccountID  string     `json:"accountId"`
	StepIndex  int        `json:"stepIndex"`
	SendAt     time.Time  `json:"sendAt"`
	Status     SendStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"lastError,omitempty"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
