package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soccervortex/skinvault-backend/internal/common/config"
	apperrors "github.com/soccervortex/skinvault-backend/internal/common/errors"
	"github.com/soccervortex/skinvault-backend/internal/common/logger"
	"github.com/soccervortex/skinvault-backend/internal/common/validation"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/repository"
	"github.com/soccervortex/skinvault-backend/internal/service/notifications"
)

// casRetries bounds the re-read/re-check/CAS loop a claim runs when the
// sweeper or a concurrent claim touches the same registry document. Every
// retry re-runs all preconditions against the fresh document, so the state
// check stays the sole ordering guarantee.
const casRetries = 3

// Notifier is the notification sink; delivery is advisory and best effort.
type Notifier interface {
	Notify(ctx context.Context, steamID, notifType, title, body string, meta map[string]interface{})
}

// ManualClaimWebhook hands a manual claim summary to staff triage.
type ManualClaimWebhook interface {
	SendManualClaim(ctx context.Context, summary *notifications.ManualClaimSummary) error
}

// ClaimResponse acknowledges an accepted claim; fulfillment is asynchronous.
type ClaimResponse struct {
	OK     bool `json:"ok"`
	Queued bool `json:"queued"`
}

// ManualClaimInput is the body of a manual claim request.
type ManualClaimInput struct {
	SteamID         string `json:"steamId" binding:"required"`
	DiscordUsername string `json:"discordUsername" binding:"required"`
	DiscordID       string `json:"discordId" binding:"required"`
	Email           string `json:"email"`
}

// FulfillmentOutcome is reported by the trade bot or staff collaborator.
type FulfillmentOutcome string

const (
	FulfillmentSuccess FulfillmentOutcome = "success"
	FulfillmentFailed  FulfillmentOutcome = "failed"
)

type ClaimService interface {
	Claim(ctx context.Context, giveawayID, steamID string) (*ClaimResponse, error)
	ManualClaim(ctx context.Context, giveawayID, steamID string, input *ManualClaimInput) (*ClaimResponse, error)
	ReportFulfillment(ctx context.Context, giveawayID, steamID string, outcome FulfillmentOutcome) error
	UpdateManualClaimStatus(ctx context.Context, giveawayID, steamID string, status models.ManualClaimStatus) error
	GetWinners(ctx context.Context, giveawayID string) ([]models.WinnerEntry, error)
}

type claimService struct {
	repo     repository.ClaimsRepository
	notifier Notifier
	webhook  ManualClaimWebhook
	config   *config.Config
	log      zerolog.Logger
	now      func() time.Time
}

func NewClaimService(
	repo repository.ClaimsRepository,
	notifier Notifier,
	webhook ManualClaimWebhook,
	cfg *config.Config,
) ClaimService {
	return &claimService{
		repo:     repo,
		notifier: notifier,
		webhook:  webhook,
		config:   cfg,
		log:      logger.With("claims"),
		now:      time.Now,
	}
}

// Claim runs the bot-path claim: validate the caller's slot and trade URL,
// reserve prize stock, record the claim and move the winner entry to
// pending_trade. The stock reservation always commits before any outbound
// notification.
func (s *claimService) Claim(ctx context.Context, giveawayID, steamID string) (*ClaimResponse, error) {
	if steamID == "" {
		return nil, apperrors.NewUnauthorizedError("steam session required")
	}

	g, err := s.getGiveaway(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	if g.ClaimMode != models.ClaimModeBot {
		return nil, apperrors.NewValidationError("claim_mode", "this giveaway requires a manual claim")
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		reg, idx, err := s.findWinner(ctx, giveawayID, steamID)
		if err != nil {
			return nil, err
		}
		entry := &reg.Entries[idx]

		if resp, done, err := s.checkClaimable(ctx, g, entry); done {
			return resp, err
		}

		now := s.now()
		tradeURL, err := s.requireTradeURL(ctx, steamID)
		if err != nil {
			return nil, err
		}

		stockID, err := s.reserveStock(ctx, g, steamID, now)
		if err != nil {
			return nil, err
		}

		rec := &models.ClaimRecord{
			GiveawayID:   g.ID,
			SteamID:      steamID,
			TradeStatus:  models.TradeStatusPending,
			PrizeStockID: stockID,
			TradeURL:     tradeURL,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		prev, err := s.repo.GetClaim(ctx, g.ID, steamID)
		if err == nil {
			rec.CreatedAt = prev.CreatedAt
		} else if err != repository.ErrNotFound {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}
		if err := s.repo.UpsertClaim(ctx, rec); err != nil {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}

		entry.ClaimStatus = models.ClaimStatusPendingTrade
		entry.ClaimedAt = &now
		entry.PrizeStockID = stockID

		err = s.repo.UpdateWinnerRegistry(ctx, reg)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}

		s.notifier.Notify(ctx, steamID, notifications.TypeClaimQueued,
			"Prize claim received",
			fmt.Sprintf("Your claim for %q was queued for the trade bot.", g.Title),
			map[string]interface{}{"giveaway_id": g.ID},
		)

		return &ClaimResponse{OK: true, Queued: true}, nil
	}

	return nil, apperrors.NewStateConflictError("claim raced a concurrent update, please retry")
}

// ManualClaim runs the staff-mediated path: same slot preconditions, contact
// details recorded, winner entry moved to manual_pending and staff webhook
// fired after the write commits.
func (s *claimService) ManualClaim(ctx context.Context, giveawayID, steamID string, input *ManualClaimInput) (*ClaimResponse, error) {
	if steamID == "" {
		return nil, apperrors.NewUnauthorizedError("steam session required")
	}

	g, err := s.getGiveaway(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	if g.ClaimMode != models.ClaimModeManual {
		return nil, apperrors.NewValidationError("claim_mode", "this giveaway is claimed through the trade bot")
	}

	if input.SteamID != steamID {
		return nil, apperrors.NewForbiddenError("steam id does not match the session")
	}
	if strings.TrimSpace(input.DiscordUsername) == "" {
		return nil, apperrors.NewValidationError("discordUsername", "discord username is required")
	}
	if err := validation.ValidateDiscordID(input.DiscordID); err != nil {
		return nil, apperrors.NewValidationError("discordId", err.Error())
	}
	if input.Email != "" && !strings.Contains(input.Email, "@") {
		return nil, apperrors.NewValidationError("email", "email address is malformed")
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		reg, idx, err := s.findWinner(ctx, giveawayID, steamID)
		if err != nil {
			return nil, err
		}
		entry := &reg.Entries[idx]

		if resp, done, err := s.checkClaimable(ctx, g, entry); done {
			return resp, err
		}

		now := s.now()
		if _, err := s.requireTradeURL(ctx, steamID); err != nil {
			return nil, err
		}

		stockID, err := s.reserveStock(ctx, g, steamID, now)
		if err != nil {
			return nil, err
		}

		rec := &models.ManualClaimRecord{
			GiveawayID:      g.ID,
			SteamID:         steamID,
			DiscordUsername: input.DiscordUsername,
			DiscordID:       input.DiscordID,
			Email:           input.Email,
			Status:          models.ManualClaimStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		prev, err := s.repo.GetManualClaim(ctx, g.ID, steamID)
		if err == nil {
			rec.CreatedAt = prev.CreatedAt
		} else if err != repository.ErrNotFound {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}
		if err := s.repo.UpsertManualClaim(ctx, rec); err != nil {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}

		entry.ClaimStatus = models.ClaimStatusManualPending
		entry.ClaimedAt = &now
		entry.PrizeStockID = stockID

		err = s.repo.UpdateWinnerRegistry(ctx, reg)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, apperrors.NewDependencyUnavailableError("storage", err)
		}

		s.notifier.Notify(ctx, steamID, notifications.TypeClaimQueued,
			"Prize claim received",
			fmt.Sprintf("Your claim for %q was handed to our staff.", g.Title),
			map[string]interface{}{"giveaway_id": g.ID},
		)
		if err := s.webhook.SendManualClaim(ctx, &notifications.ManualClaimSummary{
			GiveawayID:      g.ID,
			GiveawayTitle:   g.Title,
			SteamID:         steamID,
			DiscordUsername: input.DiscordUsername,
			DiscordID:       input.DiscordID,
			Email:           input.Email,
		}); err != nil {
			s.log.Error().Err(err).Str("giveaway_id", g.ID).Msg("Manual claim webhook failed")
		}

		return &ClaimResponse{OK: true, Queued: true}, nil
	}

	return nil, apperrors.NewStateConflictError("claim raced a concurrent update, please retry")
}

func (s *claimService) GetWinners(ctx context.Context, giveawayID string) ([]models.WinnerEntry, error) {
	reg, err := s.repo.GetWinnerRegistry(ctx, giveawayID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NewNotFoundError("giveaway winners", giveawayID)
	}
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("storage", err)
	}
	return reg.Entries, nil
}

func (s *claimService) getGiveaway(ctx context.Context, giveawayID string) (*models.Giveaway, error) {
	g, err := s.repo.GetGiveaway(ctx, giveawayID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NewNotFoundError("giveaway", giveawayID)
	}
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("storage", err)
	}
	return g, nil
}

func (s *claimService) findWinner(ctx context.Context, giveawayID, steamID string) (*models.WinnerRegistry, int, error) {
	reg, err := s.repo.GetWinnerRegistry(ctx, giveawayID)
	if err == repository.ErrNotFound {
		return nil, 0, apperrors.NewNotFoundError("giveaway winners", giveawayID)
	}
	if err != nil {
		return nil, 0, apperrors.NewDependencyUnavailableError("storage", err)
	}

	idx := reg.FindBySteamID(steamID)
	if idx == -1 {
		// A former winner whose slot was forfeited or rejected is still a
		// recorded winner; the status check downstream turns this into a
		// state conflict rather than a denial.
		idx = reg.FindInactiveBySteamID(steamID)
	}
	if idx == -1 {
		return nil, 0, apperrors.NewForbiddenError("you are not a winner of this giveaway")
	}
	return reg, idx, nil
}

// checkClaimable runs the ordered terminal/in-flight/deadline preconditions.
// done=true means the claim flow stops here with the returned pair.
func (s *claimService) checkClaimable(ctx context.Context, g *models.Giveaway, entry *models.WinnerEntry) (*ClaimResponse, bool, error) {
	switch entry.ClaimStatus {
	case models.ClaimStatusClaimed:
		return nil, true, apperrors.NewStateConflictError("prize already claimed")
	case models.ClaimStatusForfeited:
		return nil, true, apperrors.NewStateConflictError("prize was forfeited")
	case models.ClaimStatusRejected:
		return nil, true, apperrors.NewStateConflictError("claim was rejected")
	}

	if entry.ClaimStatus.IsInFlight() {
		// Idempotent resubmission: same response, no new side effects. Stale
		// bot locks are cleared so a stuck trade becomes retryable.
		if entry.ClaimStatus == models.ClaimStatusPendingTrade {
			s.clearBotLock(ctx, g.ID, entry.SteamID)
		}
		return &ClaimResponse{OK: true, Queued: true}, true, nil
	}

	if s.now().After(entry.ClaimDeadlineAt) {
		return nil, true, apperrors.NewStateConflictError("claim window expired")
	}

	return nil, false, nil
}

func (s *claimService) clearBotLock(ctx context.Context, giveawayID, steamID string) {
	rec, err := s.repo.GetClaim(ctx, giveawayID, steamID)
	if err == repository.ErrNotFound {
		return
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("giveaway_id", giveawayID).
			Str("steam_id", steamID).
			Msg("Failed to load claim record for lock clearing")
		return
	}
	if rec.BotLockedAt == nil && rec.BotLockedBy == "" {
		return
	}

	rec.BotLockedAt = nil
	rec.BotLockedBy = ""
	rec.UpdatedAt = s.now()
	if err := s.repo.UpsertClaim(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("giveaway_id", giveawayID).
			Str("steam_id", steamID).
			Msg("Failed to clear stale bot lock")
	}
}

func (s *claimService) requireTradeURL(ctx context.Context, steamID string) (string, error) {
	settings, err := s.repo.GetUserSettings(ctx, steamID)
	if err != nil && err != repository.ErrNotFound {
		return "", apperrors.NewDependencyUnavailableError("storage", err)
	}

	tradeURL := ""
	if err == nil {
		tradeURL = settings.TradeURL
	}

	if err := validation.ValidateTradeURL(tradeURL); err != nil {
		return "", apperrors.NewValidationError("trade_url", err.Error()).
			WithDetail("remediation", validation.TradeURLRemediation)
	}
	return tradeURL, nil
}

// reserveStock picks the oldest AVAILABLE item and CASes it to RESERVED.
// Losing a CAS moves on to the next item; the conflict error only surfaces
// when no item could be taken and none is already held by this claimant.
// Giveaways without discrete stock return an empty id.
func (s *claimService) reserveStock(ctx context.Context, g *models.Giveaway, steamID string, now time.Time) (string, error) {
	items, err := s.repo.ListStock(ctx, g.ID)
	if err != nil {
		return "", apperrors.NewDependencyUnavailableError("storage", err)
	}
	if len(items) == 0 {
		return "", nil
	}

	// A retried claim re-validates its recorded reservation instead of
	// taking a second item, re-reserving only if it was released.
	rec, err := s.repo.GetClaim(ctx, g.ID, steamID)
	if err != nil && err != repository.ErrNotFound {
		return "", apperrors.NewDependencyUnavailableError("storage", err)
	}
	if err == nil && rec.PrizeStockID != "" {
		item, err := s.repo.GetStockItem(ctx, rec.PrizeStockID)
		if err != nil && err != repository.ErrNotFound {
			return "", apperrors.NewDependencyUnavailableError("storage", err)
		}
		if err == nil {
			if item.Status == models.StockStatusReserved && item.ReservedBySteamID == steamID {
				return item.ID, nil
			}
			if item.Status == models.StockStatusAvailable {
				if err := s.repo.ReserveStockItem(ctx, item.ID, steamID, now); err == nil {
					return item.ID, nil
				}
			}
		}
	}

	for _, item := range items {
		if item.Status == models.StockStatusReserved && item.ReservedBySteamID == steamID {
			return item.ID, nil
		}
		if item.Status != models.StockStatusAvailable {
			continue
		}
		err := s.repo.ReserveStockItem(ctx, item.ID, steamID, now)
		if err == nil {
			return item.ID, nil
		}
		if err == repository.ErrStockConflict || err == repository.ErrNotFound {
			continue
		}
		return "", apperrors.NewDependencyUnavailableError("storage", err)
	}

	// Every CAS lost. If a concurrent request from the same user won one of
	// those races, treat this request as the idempotent duplicate.
	if items, err = s.repo.ListStock(ctx, g.ID); err == nil {
		for _, item := range items {
			if item.Status == models.StockStatusReserved && item.ReservedBySteamID == steamID {
				return item.ID, nil
			}
		}
	}

	return "", apperrors.NewReservationConflictError(g.ID)
}
