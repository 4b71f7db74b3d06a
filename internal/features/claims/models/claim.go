package models

import "time"

// TradeStatus tracks the bot delivery of a claim.
type TradeStatus string

const (
	TradeStatusPending TradeStatus = "PENDING"
	TradeStatusSent    TradeStatus = "SENT"
	TradeStatusSuccess TradeStatus = "SUCCESS"
	TradeStatusFailed  TradeStatus = "FAILED"
)

// ClaimRecord is the bot-path claim, unique per (giveaway, steamID). The bot
// lock fields mark a worker owning the trade; a retried claim clears them so
// a stuck trade can be picked up again.
type ClaimRecord struct {
	GiveawayID   string      `json:"giveaway_id"`
	SteamID      string      `json:"steam_id"`
	TradeStatus  TradeStatus `json:"trade_status"`
	PrizeStockID string      `json:"prize_stock_id,omitempty"`
	TradeURL     string      `json:"trade_url"`
	BotLockedAt  *time.Time  `json:"bot_locked_at,omitempty"`
	BotLockedBy  string      `json:"bot_locked_by,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ManualClaimStatus tracks the staff-mediated delivery of a claim.
type ManualClaimStatus string

const (
	ManualClaimStatusPending      ManualClaimStatus = "pending"
	ManualClaimStatusContacted    ManualClaimStatus = "contacted"
	ManualClaimStatusAwaitingUser ManualClaimStatus = "awaiting_user"
	ManualClaimStatusSent         ManualClaimStatus = "sent"
	ManualClaimStatusCompleted    ManualClaimStatus = "completed"
	ManualClaimStatusRejected     ManualClaimStatus = "rejected"
)

// ManualClaimRecord is the staff-path claim, unique per (giveaway, steamID).
type ManualClaimRecord struct {
	GiveawayID      string            `json:"giveaway_id"`
	SteamID         string            `json:"steam_id"`
	DiscordUsername string            `json:"discord_username"`
	DiscordID       string            `json:"discord_id"`
	Email           string            `json:"email,omitempty"`
	Status          ManualClaimStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Fulfillment is the tagged union of delivery details attached to a claim.
type Fulfillment struct {
	Kind   ClaimMode      `json:"kind"`
	Bot    *BotManaged    `json:"bot,omitempty"`
	Manual *ManualManaged `json:"manual,omitempty"`
}

// BotManaged carries the reserved asset for trade-bot delivery.
type BotManaged struct {
	PrizeStockID string   `json:"prize_stock_id"`
	Asset        AssetRef `json:"asset"`
}

// ManualManaged carries the contact details for staff-mediated delivery.
type ManualManaged struct {
	DiscordUsername string `json:"discord_username"`
	DiscordID       string `json:"discord_id"`
	Email           string `json:"email,omitempty"`
}

// ManualEntryStatus maps a staff manual-claim status onto the winner entry
// state it implies.
func ManualEntryStatus(s ManualClaimStatus) (ClaimStatus, bool) {
	switch s {
	case ManualClaimStatusPending:
		return ClaimStatusManualPending, true
	case ManualClaimStatusContacted:
		return ClaimStatusManualContacted, true
	case ManualClaimStatusAwaitingUser:
		return ClaimStatusManualAwaitingUser, true
	case ManualClaimStatusSent:
		return ClaimStatusManualSent, true
	case ManualClaimStatusCompleted:
		return ClaimStatusClaimed, true
	case ManualClaimStatusRejected:
		return ClaimStatusRejected, true
	}
	return "", false
}
