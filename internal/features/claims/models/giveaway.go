package models

import "time"

// ClaimMode selects how a giveaway's prizes get delivered.
type ClaimMode string

const (
	// ClaimModeBot delivers via the automated trade bot against prize stock.
	ClaimModeBot ClaimMode = "bot"
	// ClaimModeManual hands the claim to staff for mediated delivery.
	ClaimModeManual ClaimMode = "manual"
)

type Giveaway struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Prize        string     `json:"prize"`
	ClaimMode    ClaimMode  `json:"claim_mode"`
	WinnersCount int        `json:"winners_count"`
	CreatedAt    time.Time  `json:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
}

func (g *Giveaway) IsArchived() bool {
	return g.ArchivedAt != nil
}

// EntryRow is one entrant in the reroll candidate pool, weighted by the
// entries they accumulated before the draw.
type EntryRow struct {
	SteamID string `json:"steam_id"`
	Entries int64  `json:"entries"`
}

// UserSettings carries the per-user fields the claim flow consumes.
type UserSettings struct {
	SteamID  string `json:"steam_id"`
	TradeURL string `json:"trade_url"`
}
