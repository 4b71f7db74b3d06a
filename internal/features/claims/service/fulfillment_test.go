package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/soccervortex/skinvault-backend/internal/common/errors"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	"github.com/soccervortex/skinvault-backend/internal/service/notifications"
)

func seedBotClaim(t *testing.T, repo *fakeRepo, svc *claimService) {
	t.Helper()
	seedGiveaway(t, repo, models.ClaimModeBot, steamWinner)
	seedStock(t, repo, stockItemOneID)
	seedTradeURL(t, repo, steamWinner)
	_, err := svc.Claim(context.Background(), giveawayID, steamWinner)
	require.NoError(t, err)
}

func seedManualClaim(t *testing.T, repo *fakeRepo, svc *claimService) {
	t.Helper()
	seedGiveaway(t, repo, models.ClaimModeManual, steamWinner)
	seedStock(t, repo, stockItemOneID)
	seedTradeURL(t, repo, steamWinner)
	_, err := svc.ManualClaim(context.Background(), giveawayID, steamWinner, &ManualClaimInput{
		SteamID:         steamWinner,
		DiscordUsername: "skin_collector",
		DiscordID:       "123456789012345678",
	})
	require.NoError(t, err)
}

func TestFulfillmentSuccessDeliversClaim(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	seedBotClaim(t, repo, svc)

	require.NoError(t, svc.ReportFulfillment(ctx, giveawayID, steamWinner, FulfillmentSuccess))

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, reg.Entries[0].ClaimStatus)

	rec, err := repo.GetClaim(ctx, giveawayID, steamWinner)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusSuccess, rec.TradeStatus)
	assert.Nil(t, rec.BotLockedAt)

	item, err := repo.GetStockItem(ctx, stockItemOneID)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusDelivered, item.Status)

	assert.Len(t, notifier.ofType(notifications.TypeClaimFulfilled), 1)
}

func TestFulfillmentSuccessIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	seedBotClaim(t, repo, svc)

	require.NoError(t, svc.ReportFulfillment(ctx, giveawayID, steamWinner, FulfillmentSuccess))
	require.NoError(t, svc.ReportFulfillment(ctx, giveawayID, steamWinner, FulfillmentSuccess))

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, reg.Entries[0].ClaimStatus)
	assert.Len(t, notifier.ofType(notifications.TypeClaimFulfilled), 1)

	item, err := repo.GetStockItem(ctx, stockItemOneID)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusDelivered, item.Status)
}

func TestFulfillmentFailureKeepsClaimRetryable(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	seedBotClaim(t, repo, svc)

	require.NoError(t, svc.ReportFulfillment(ctx, giveawayID, steamWinner, FulfillmentFailed))

	rec, err := repo.GetClaim(ctx, giveawayID, steamWinner)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusFailed, rec.TradeStatus)

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusPendingTrade, reg.Entries[0].ClaimStatus)

	// The user can resubmit and stays queued on the same reservation.
	resp, err := svc.Claim(ctx, giveawayID, steamWinner)
	require.NoError(t, err)
	assert.True(t, resp.Queued)
}

func TestFulfillmentRejectsUnknownOutcome(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeNotifier{})

	err := svc.ReportFulfillment(context.Background(), giveawayID, steamWinner, "shipped")
	requireAppError(t, err, apperrors.ErrCodeValidation)
}

func TestFulfillmentOnUnclaimedEntryConflicts(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})

	seedGiveaway(t, repo, models.ClaimModeBot, steamWinner)

	err := svc.ReportFulfillment(context.Background(), giveawayID, steamWinner, FulfillmentSuccess)
	requireAppError(t, err, apperrors.ErrCodeStateConflict)
}

func TestManualStatusProgression(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	seedManualClaim(t, repo, svc)

	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusContacted))
	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusAwaitingUser))
	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusSent))

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusManualSent, reg.Entries[0].ClaimStatus)

	rec, err := repo.GetManualClaim(ctx, giveawayID, steamWinner)
	require.NoError(t, err)
	assert.Equal(t, models.ManualClaimStatusSent, rec.Status)

	// Moving backwards is refused.
	err = svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusContacted)
	requireAppError(t, err, apperrors.ErrCodeStateConflict)

	// Re-sending the current status is a no-op.
	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusSent))
}

func TestManualStatusCompletedDeliversStock(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	seedManualClaim(t, repo, svc)

	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusCompleted))

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusClaimed, reg.Entries[0].ClaimStatus)

	item, err := repo.GetStockItem(ctx, stockItemOneID)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusDelivered, item.Status)
}

func TestManualStatusRejectedReleasesStock(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	seedManualClaim(t, repo, svc)

	require.NoError(t, svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusRejected))

	reg, err := repo.GetWinnerRegistry(ctx, giveawayID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimStatusRejected, reg.Entries[0].ClaimStatus)
	assert.Empty(t, reg.Entries[0].PrizeStockID)

	item, err := repo.GetStockItem(ctx, stockItemOneID)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusAvailable, item.Status)
	assert.Empty(t, item.ReservedBySteamID)

	rec, err := repo.GetManualClaim(ctx, giveawayID, steamWinner)
	require.NoError(t, err)
	assert.Equal(t, models.ManualClaimStatusRejected, rec.Status)
}

func TestManualStatusValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	seedManualClaim(t, repo, svc)

	err := svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, "escalated")
	requireAppError(t, err, apperrors.ErrCodeValidation)

	err = svc.UpdateManualClaimStatus(ctx, giveawayID, steamWinner, models.ManualClaimStatusPending)
	requireAppError(t, err, apperrors.ErrCodeValidation)

	err = svc.UpdateManualClaimStatus(ctx, giveawayID, steamOther, models.ManualClaimStatusContacted)
	requireAppError(t, err, apperrors.ErrCodeNotFound)
}
