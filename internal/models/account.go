// internal/models/account.go
package models

import "time"

type ConnectionStatus string

const (
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// Account is one tenant messaging identity. Quota counters are mutated only
// through the quota tracker's atomic reserve; nothing else writes them.
type Account struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	ProviderAccountID string           `json:"providerAccountId"`
	DailyLimit        int              `json:"dailyLimit"`
	WeeklyLimit       int              `json:"weeklyLimit"`
	SentToday         int              `json:"sentToday"`
	SentThisWeek      int              `json:"sentThisWeek"`
	LastSendDate      *time.Time       `json:"lastSendDate,omitempty"`
	Timezone          string           `json:"timezone"`
	WeekStartDay      time.Weekday     `json:"weekStartDay"`
	Active            bool             `json:"active"`
	ConnectionStatus  ConnectionStatus `json:"connectionStatus"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Location resolves the account timezone, falling back to UTC.
func (a *Account) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
