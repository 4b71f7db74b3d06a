package service

import (
	"context"
	"fmt"

	apperrors "github.com/soccervortex/skinvault-backend/internal/common/errors"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/repository"
	"github.com/soccervortex/skinvault-backend/internal/service/notifications"
)

// ReportFulfillment is the idempotent callback the trade bot or staff invoke
// once a delivery attempt finishes. A success moves the in-flight winner
// entry to claimed; repeats are no-ops. A failure marks the claim record so
// the user can retry, leaving the winner entry in flight.
func (s *claimService) ReportFulfillment(ctx context.Context, giveawayID, steamID string, outcome FulfillmentOutcome) error {
	switch outcome {
	case FulfillmentSuccess, FulfillmentFailed:
	default:
		return apperrors.NewValidationError("outcome", fmt.Sprintf("unknown outcome %q", outcome))
	}

	if outcome == FulfillmentFailed {
		return s.markFulfillmentFailed(ctx, giveawayID, steamID)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		reg, idx, err := s.findWinner(ctx, giveawayID, steamID)
		if err != nil {
			return err
		}
		entry := &reg.Entries[idx]

		if entry.ClaimStatus == models.ClaimStatusClaimed {
			return nil // already resolved, idempotent
		}
		if !models.CanTransition(entry.ClaimStatus, models.ClaimStatusClaimed) {
			return apperrors.NewStateConflictError(
				fmt.Sprintf("entry in status %q cannot be fulfilled", entry.ClaimStatus))
		}

		wasManual := entry.ClaimStatus.IsManual()
		entry.ClaimStatus = models.ClaimStatusClaimed

		err = s.repo.UpdateWinnerRegistry(ctx, reg)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return apperrors.NewDependencyUnavailableError("storage", err)
		}

		s.resolveClaimRecords(ctx, giveawayID, steamID, wasManual)

		if entry.PrizeStockID != "" {
			if err := s.repo.DeliverStockItem(ctx, entry.PrizeStockID); err != nil &&
				err != repository.ErrStockConflict && err != repository.ErrNotFound {
				s.log.Error().Err(err).
					Str("stock_id", entry.PrizeStockID).
					Msg("Failed to mark stock delivered")
			}
		}

		s.notifier.Notify(ctx, steamID, notifications.TypeClaimFulfilled,
			"Prize delivered",
			"Your prize was delivered. Enjoy!",
			map[string]interface{}{"giveaway_id": giveawayID},
		)
		return nil
	}

	return apperrors.NewStateConflictError("fulfillment raced a concurrent update, please retry")
}

func (s *claimService) markFulfillmentFailed(ctx context.Context, giveawayID, steamID string) error {
	rec, err := s.repo.GetClaim(ctx, giveawayID, steamID)
	if err == repository.ErrNotFound {
		// Manual path: the failure is a staff concern, nothing to mark here.
		return nil
	}
	if err != nil {
		return apperrors.NewDependencyUnavailableError("storage", err)
	}

	rec.TradeStatus = models.TradeStatusFailed
	rec.BotLockedAt = nil
	rec.BotLockedBy = ""
	rec.UpdatedAt = s.now()
	if err := s.repo.UpsertClaim(ctx, rec); err != nil {
		return apperrors.NewDependencyUnavailableError("storage", err)
	}
	return nil
}

func (s *claimService) resolveClaimRecords(ctx context.Context, giveawayID, steamID string, wasManual bool) {
	if wasManual {
		rec, err := s.repo.GetManualClaim(ctx, giveawayID, steamID)
		if err != nil {
			return
		}
		rec.Status = models.ManualClaimStatusCompleted
		rec.UpdatedAt = s.now()
		if err := s.repo.UpsertManualClaim(ctx, rec); err != nil {
			s.log.Error().Err(err).Str("giveaway_id", giveawayID).Msg("Failed to complete manual claim record")
		}
		return
	}

	rec, err := s.repo.GetClaim(ctx, giveawayID, steamID)
	if err != nil {
		return
	}
	rec.TradeStatus = models.TradeStatusSuccess
	rec.BotLockedAt = nil
	rec.BotLockedBy = ""
	rec.UpdatedAt = s.now()
	if err := s.repo.UpsertClaim(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("giveaway_id", giveawayID).Msg("Failed to complete claim record")
	}
}

// UpdateManualClaimStatus lets staff advance a manual claim along
// contacted -> awaiting_user -> sent, complete it, or reject it. The winner
// entry follows via the state machine; rejection releases any held stock.
func (s *claimService) UpdateManualClaimStatus(ctx context.Context, giveawayID, steamID string, status models.ManualClaimStatus) error {
	target, ok := models.ManualEntryStatus(status)
	if !ok {
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown manual claim status %q", status))
	}
	if status == models.ManualClaimStatusPending {
		return apperrors.NewValidationError("status", "a manual claim cannot be reset to pending")
	}

	rec, err := s.repo.GetManualClaim(ctx, giveawayID, steamID)
	if err == repository.ErrNotFound {
		return apperrors.NewNotFoundError("manual claim", fmt.Sprintf("%s/%s", giveawayID, steamID))
	}
	if err != nil {
		return apperrors.NewDependencyUnavailableError("storage", err)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		reg, idx, err := s.findWinner(ctx, giveawayID, steamID)
		if err != nil {
			return err
		}
		entry := &reg.Entries[idx]

		if entry.ClaimStatus == target {
			return nil // repeated staff action, idempotent
		}
		if !models.CanTransition(entry.ClaimStatus, target) {
			return apperrors.NewStateConflictError(
				fmt.Sprintf("cannot move entry from %q to %q", entry.ClaimStatus, target))
		}

		stockID := entry.PrizeStockID
		entry.ClaimStatus = target
		if target == models.ClaimStatusRejected {
			entry.PrizeStockID = ""
		}

		err = s.repo.UpdateWinnerRegistry(ctx, reg)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return apperrors.NewDependencyUnavailableError("storage", err)
		}

		rec.Status = status
		rec.UpdatedAt = s.now()
		if err := s.repo.UpsertManualClaim(ctx, rec); err != nil {
			return apperrors.NewDependencyUnavailableError("storage", err)
		}

		if stockID != "" {
			switch target {
			case models.ClaimStatusRejected:
				if err := s.repo.ReleaseStockItem(ctx, stockID); err != nil && err != repository.ErrStockConflict {
					s.log.Error().Err(err).Str("stock_id", stockID).Msg("Failed to release stock of rejected claim")
				}
			case models.ClaimStatusClaimed:
				if err := s.repo.DeliverStockItem(ctx, stockID); err != nil && err != repository.ErrStockConflict {
					s.log.Error().Err(err).Str("stock_id", stockID).Msg("Failed to mark stock delivered")
				}
			}
		}

		return nil
	}

	return apperrors.NewStateConflictError("status update raced a concurrent update, please retry")
}
