// Package provider wraps the third-party messaging API behind a narrow,
// mockable interface. Failures come back as structured errors with
// machine-readable codes; callers never inspect provider message text.
package provider

import "context"

type AcceptanceStatus string

const (
	AcceptanceAccepted AcceptanceStatus = "accepted"
	AcceptancePending  AcceptanceStatus = "pending"
	AcceptanceDeclined AcceptanceStatus = "declined"
)

// Profile is the provider's view of a target, resolved from a raw handle.
type Profile struct {
	ProviderID       string `json:"provider_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	AlreadyConnected bool   `json:"already_connected"`
	InvitePending    bool   `json:"invite_pending"`
	InviteWithdrawn  bool   `json:"invite_withdrawn"`
}

// Messenger is the opaque send capability consumed by the orchestrator.
type Messenger interface {
	// ResolveIdentifier canonicalizes a raw profile handle into the
	// provider's stable identifier plus pre-send state.
	ResolveIdentifier(ctx context.Context, accountRef, rawHandle string) (*Profile, error)

	// SendInitialContact sends the invite / first outreach and returns the
	// provider send ID.
	SendInitialContact(ctx context.Context, accountRef, targetID, message string) (string, error)

	// FindConversation locates the chat opened with an accepted target.
	FindConversation(ctx context.Context, accountRef, targetID string) (string, error)

	// SendFollowUp sends a message into an existing conversation.
	SendFollowUp(ctx context.Context, accountRef, conversationRef, message string) (string, error)

	// GetAcceptanceStatus reports whether the target accepted the invite.
	GetAcceptanceStatus(ctx context.Context, accountRef, targetID string) (AcceptanceStatus, error)
}
