// internal/models/contact.go
package models

import "time"

// ContactStatus is the contact's position in its sequence. StepSent is
// qualified by Contact.StepIndex (the last step actually delivered).
type ContactStatus string

const (
	ContactStatusNotStarted         ContactStatus = "not_started"
	ContactStatusStepSent           ContactStatus = "step_sent"
	ContactStatusAwaitingAcceptance ContactStatus = "awaiting_acceptance"
	ContactStatusAccepted           ContactStatus = "accepted"
	ContactStatusDeclinedOrTimedOut ContactStatus = "declined_or_timed_out"
	ContactStatusCompleted          ContactStatus = "completed"
	ContactStatusFailed             ContactStatus = "failed"
	ContactStatusQuotaBlocked       ContactStatus = "quota_blocked"
)

// Terminal reports whether the sequence is finished for this contact.
// Terminal contacts are archived, never deleted.
func (s ContactStatus) Terminal() bool {
	switch s {
	case ContactStatusCompleted, ContactStatusFailed, ContactStatusDeclinedOrTimedOut:
		return true
	}
	return false
}

type Contact struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaignId"`

	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName,omitempty"`
	Title       string `json:"title,omitempty"`
	ProfileURL  string `json:"profileUrl"`

	// IdentityKey is the normalized dedup key derived from ProfileURL or
	// email; unique across campaigns for non-terminal contacts.
	IdentityKey string `json:"identityKey"`

	// ProviderUserID and ConversationID are cached after first resolution
	// against the messaging provider.
	ProviderUserID string `json:"providerUserId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`

	Status    ContactStatus `json:"status"`
	StepIndex int           `json:"stepIndex"`

	// NextActionAt is the durable resume timestamp: when an awaiting or
	// blocked contact becomes due for the sweep again.
	NextActionAt *time.Time `json:"nextActionAt,omitempty"`
	LastReason   string     `json:"lastReason,omitempty"`

	LastActionAt *time.Time `json:"lastActionAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
