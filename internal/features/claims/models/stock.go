package models

import "time"

// StockStatus is the availability state of one discrete prize asset.
type StockStatus string

const (
	StockStatusAvailable StockStatus = "AVAILABLE"
	StockStatusReserved  StockStatus = "RESERVED"
	StockStatusDelivered StockStatus = "DELIVERED"
)

// AssetRef identifies a concrete Steam inventory asset.
type AssetRef struct {
	AssetID    string `json:"asset_id"`
	ClassID    string `json:"class_id"`
	InstanceID string `json:"instance_id"`
	AppID      int    `json:"app_id"`
	ContextID  int    `json:"context_id"`
}

// PrizeStockItem is one reservable asset backing a giveaway. Reservation is a
// compare-and-swap on Status: AVAILABLE -> RESERVED stamps the claimant,
// RESERVED -> DELIVERED is set by the fulfillment collaborator.
type PrizeStockItem struct {
	ID                string      `json:"id"`
	GiveawayID        string      `json:"giveaway_id"`
	Status            StockStatus `json:"status"`
	ReservedBySteamID string      `json:"reserved_by_steam_id,omitempty"`
	ReservedAt        *time.Time  `json:"reserved_at,omitempty"`
	Asset             AssetRef    `json:"asset"`
	CreatedAt         time.Time   `json:"created_at"`
}
