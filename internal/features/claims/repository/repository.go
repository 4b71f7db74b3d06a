package repository

import (
	"context"
	"errors"
	"time"

	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a winner registry write lost the CAS on the
	// document version. The caller re-reads and retries.
	ErrVersionConflict = errors.New("registry version conflict")

	// ErrStockConflict means a concurrent writer beat us to a stock item.
	ErrStockConflict = errors.New("stock item state conflict")
)

// ClaimsRepository is the storage surface of the claim engine. Every mutation
// is atomic at the store: registry writes are a compare-and-swap on the
// document version, stock writes a compare-and-swap on the item state. There
// is no application-level lock above these primitives.
type ClaimsRepository interface {
	// Giveaways
	CreateGiveaway(ctx context.Context, g *models.Giveaway) error
	GetGiveaway(ctx context.Context, id string) (*models.Giveaway, error)
	ArchiveGiveaway(ctx context.Context, id string, at time.Time) error

	// Winner registry documents
	PutWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error
	GetWinnerRegistry(ctx context.Context, giveawayID string) (*models.WinnerRegistry, error)
	// UpdateWinnerRegistry commits reg only if the stored version still equals
	// reg.Version, bumping it by one. ErrVersionConflict otherwise.
	UpdateWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error
	// ListClaimPendingGiveaways returns up to limit giveaway ids that still
	// hold pending winner entries.
	ListClaimPendingGiveaways(ctx context.Context, limit int) ([]string, error)

	// Prize stock
	CreateStockItem(ctx context.Context, item *models.PrizeStockItem) error
	GetStockItem(ctx context.Context, id string) (*models.PrizeStockItem, error)
	// ListStock returns a giveaway's stock in insertion order, oldest first.
	ListStock(ctx context.Context, giveawayID string) ([]*models.PrizeStockItem, error)
	// ReserveStockItem CASes AVAILABLE -> RESERVED for steamID.
	ReserveStockItem(ctx context.Context, itemID, steamID string, at time.Time) error
	// ReleaseStockItem CASes RESERVED -> AVAILABLE, clearing the claimant.
	ReleaseStockItem(ctx context.Context, itemID string) error
	// DeliverStockItem CASes RESERVED -> DELIVERED.
	DeliverStockItem(ctx context.Context, itemID string) error

	// Claim records, unique per (giveawayID, steamID)
	GetClaim(ctx context.Context, giveawayID, steamID string) (*models.ClaimRecord, error)
	UpsertClaim(ctx context.Context, rec *models.ClaimRecord) error
	GetManualClaim(ctx context.Context, giveawayID, steamID string) (*models.ManualClaimRecord, error)
	UpsertManualClaim(ctx context.Context, rec *models.ManualClaimRecord) error

	// Reroll candidate pool
	SetEntries(ctx context.Context, giveawayID string, rows []models.EntryRow) error
	GetEntries(ctx context.Context, giveawayID string) ([]models.EntryRow, error)

	// User settings (trade URL)
	SetUserSettings(ctx context.Context, s *models.UserSettings) error
	GetUserSettings(ctx context.Context, steamID string) (*models.UserSettings, error)
}
