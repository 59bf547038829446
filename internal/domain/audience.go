package domain

import (
	"time"
)

// AudienceType classifies how an ad set targets people.
type AudienceType string

const (
	AudienceBroad     AudienceType = "BROAD"
	AudienceInterest  AudienceType = "INTEREST"
	AudienceLookalike AudienceType = "LOOKALIKE"
	AudienceCustom    AudienceType = "CUSTOM"
)

// Account is a connected ad account. Token exchange and encryption at rest
// live outside this service; the token here is opaque pass-through material.
type Account struct {
	ID            string     `json:"id" db:"id"`
	ExternalID    string     `json:"external_id" db:"external_id"`
	Name          string     `json:"name" db:"name"`
	AccessToken   string     `json:"-" db:"access_token"`
	LastSyncedAt  *time.Time `json:"last_synced_at" db:"last_synced_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Audience is one ad set tracked for the account. It is upserted by its
// external ad-set ID on every sync; the type is inferred from targeting
// metadata at ingestion time.
type Audience struct {
	ID           string       `json:"id" db:"id"`
	AccountID    string       `json:"account_id" db:"account_id"`
	ExternalID   string       `json:"external_id" db:"external_id"`
	Name         string       `json:"name" db:"name"`
	Type         AudienceType `json:"audience_type" db:"audience_type"`
	LaunchedAt   *time.Time   `json:"launched_at" db:"launched_at"`
	DailyBudget  *float64     `json:"daily_budget" db:"daily_budget"`
	CampaignID   *string      `json:"campaign_id" db:"campaign_id"`
	CampaignName *string      `json:"campaign_name" db:"campaign_name"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// AgeDays returns the audience age in whole days at the given instant,
// or 0 when the launch time is unknown.
func (a *Audience) AgeDays(now time.Time) int {
	if a.LaunchedAt == nil {
		return 0
	}
	d := now.Sub(*a.LaunchedAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
