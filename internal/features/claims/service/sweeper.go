package service

import (
	"context"
	"fmt"
	"math/rand"
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

// SweepResult is the cron endpoint's report of one sweep run.
type SweepResult struct {
	OK             bool `json:"ok"`
	Processed      int  `json:"processed"`
	ForfeitedCount int  `json:"forfeitedCount"`
	RerolledCount  int  `json:"rerolledCount"`
	ArchivedCount  int  `json:"archivedCount"`
	ReminderCount  int  `json:"reminderCount"`
	ReleasedCount  int  `json:"releasedCount"`
}

// RerollSweeper walks giveaways that still hold pending winner entries:
// reminds entries nearing their deadline, forfeits and rerolls expired ones,
// archives finished giveaways and releases orphaned stock reservations. It
// runs on an external schedule via the cron endpoint and races ClaimService
// by design; all mutations go through the same registry CAS, and the sweeper
// only forfeits entries still pending at write time.
type RerollSweeper struct {
	repo     repository.ClaimsRepository
	notifier Notifier
	config   *config.Config
	log      zerolog.Logger
	now      func() time.Time
	rng      *rand.Rand
}

func NewRerollSweeper(repo repository.ClaimsRepository, notifier Notifier, cfg *config.Config) *RerollSweeper {
	return &RerollSweeper{
		repo:     repo,
		notifier: notifier,
		config:   cfg,
		log:      logger.With("sweeper"),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sweep processes a bounded batch of giveaways. A failure on one giveaway is
// logged and never aborts the rest of the batch.
func (s *RerollSweeper) Sweep(ctx context.Context, limit int, reminderWindow time.Duration) (*SweepResult, error) {
	if limit <= 0 {
		limit = s.config.Claims.SweepLimit
	}
	if reminderWindow <= 0 {
		reminderWindow = s.config.Claims.ReminderWindow
	}

	ids, err := s.repo.ListClaimPendingGiveaways(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailableError("storage", err)
	}

	res := &SweepResult{OK: true}
	for _, id := range ids {
		if err := s.processGiveaway(ctx, id, reminderWindow, res); err != nil {
			s.log.Error().Err(err).Str("giveaway_id", id).Msg("Sweep failed for giveaway")
			continue
		}
		res.Processed++
	}

	s.log.Info().
		Int("processed", res.Processed).
		Int("forfeited", res.ForfeitedCount).
		Int("rerolled", res.RerolledCount).
		Int("archived", res.ArchivedCount).
		Int("reminders", res.ReminderCount).
		Int("released", res.ReleasedCount).
		Msg("Sweep finished")
	return res, nil
}

// pendingNotification is a side effect queued during a pass and only sent
// after the registry write commits.
type pendingNotification struct {
	steamID string
	typ     string
	title   string
	body    string
	meta    map[string]interface{}
}

func (s *RerollSweeper) processGiveaway(ctx context.Context, giveawayID string, reminderWindow time.Duration, res *SweepResult) error {
	g, err := s.repo.GetGiveaway(ctx, giveawayID)
	if err != nil {
		return err
	}
	if g.IsArchived() {
		return nil
	}

	pool, err := s.repo.GetEntries(ctx, giveawayID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		reg, err := s.repo.GetWinnerRegistry(ctx, giveawayID)
		if err != nil {
			return err
		}

		now := s.now()
		var notifs []pendingNotification
		reminders, forfeits, rerolls := 0, 0, 0
		changed := false

		// Snapshot of everyone holding a slot when the pass starts. Grows
		// with every replacement drawn in this pass so multiple forfeitures
		// in one giveaway never reroll into each other.
		excluded := reg.ActiveSteamIDs()

		for i := range reg.Entries {
			entry := &reg.Entries[i]
			if entry.ClaimStatus != models.ClaimStatusPending {
				continue
			}

			if now.After(entry.ClaimDeadlineAt) {
				forfeitedAt := now
				entry.ClaimStatus = models.ClaimStatusForfeited
				entry.ForfeitedAt = &forfeitedAt
				changed = true
				forfeits++

				outcome := s.selectReplacement(ctx, pool, excluded)
				for _, steamID := range outcome.disqualified {
					notifs = append(notifs, pendingNotification{
						steamID: steamID,
						typ:     notifications.TypeTradeURLInvalid,
						title:   "Update your trade URL",
						body:    fmt.Sprintf("You were drawn as a replacement winner for %q but your trade URL is missing or invalid.", g.Title),
						meta:    map[string]interface{}{"giveaway_id": g.ID, "remediation": validation.TradeURLRemediation},
					})
				}
				if outcome.winner != nil {
					reg.Entries[i] = rerolledEntry(outcome.winner, now, s.config.Claims.ClaimWindow)
					excluded[outcome.winner.SteamID] = struct{}{}
					rerolls++
					notifs = append(notifs, pendingNotification{
						steamID: outcome.winner.SteamID,
						typ:     notifications.TypeWinnerRerolled,
						title:   "You won a giveaway!",
						body:    fmt.Sprintf("A prize slot for %q opened up and you were drawn. Claim it within %s.", g.Title, s.config.Claims.ClaimWindow),
						meta:    map[string]interface{}{"giveaway_id": g.ID},
					})
				}
				continue
			}

			if entry.ClaimDeadlineAt.Sub(now) <= reminderWindow && entry.ReminderSentAt == nil {
				sentAt := now
				entry.ReminderSentAt = &sentAt
				changed = true
				reminders++
				notifs = append(notifs, pendingNotification{
					steamID: entry.SteamID,
					typ:     notifications.TypeClaimReminder,
					title:   "Your prize is waiting",
					body:    fmt.Sprintf("Claim your prize for %q before %s or it will be rerolled.", g.Title, entry.ClaimDeadlineAt.Format(time.RFC1123)),
					meta:    map[string]interface{}{"giveaway_id": g.ID},
				})
			}
		}

		if changed {
			// One write per giveaway document; partial-array updates never
			// hit the store.
			err = s.repo.UpdateWinnerRegistry(ctx, reg)
			if err == repository.ErrVersionConflict {
				continue
			}
			if err != nil {
				return err
			}
		}

		res.ReminderCount += reminders
		res.ForfeitedCount += forfeits
		res.RerolledCount += rerolls

		for _, n := range notifs {
			s.notifier.Notify(ctx, n.steamID, n.typ, n.title, n.body, n.meta)
		}

		if reg.PendingCount() == 0 {
			if err := s.repo.ArchiveGiveaway(ctx, giveawayID, s.now()); err != nil {
				s.log.Error().Err(err).Str("giveaway_id", giveawayID).Msg("Failed to archive giveaway")
			} else {
				res.ArchivedCount++
			}
		}

		released, err := s.releaseStaleReservations(ctx, g, reg)
		if err != nil {
			s.log.Error().Err(err).Str("giveaway_id", giveawayID).Msg("Stale reservation release failed")
		}
		res.ReleasedCount += released

		return nil
	}

	return fmt.Errorf("giveaway %s: registry version conflicts exhausted", giveawayID)
}

// selectReplacement draws a replacement from the entry pool. The exclusion
// set grows with every candidate whose trade URL fails validation, so the
// worklist is bounded by the pool size rather than a retry constant. A nil
// winner means the pool is exhausted and the slot stays forfeited.
func (s *RerollSweeper) selectReplacement(ctx context.Context, pool []models.EntryRow, excluded map[string]struct{}) rerollOutcome {
	out := rerollOutcome{}

	for {
		idx := weightedPick(s.rng, pool, excluded)
		if idx == -1 {
			return out
		}

		candidate := pool[idx]

		tradeURL := ""
		if settings, err := s.repo.GetUserSettings(ctx, candidate.SteamID); err == nil {
			tradeURL = settings.TradeURL
		}
		if err := validation.ValidateTradeURL(tradeURL); err != nil {
			excluded[candidate.SteamID] = struct{}{}
			out.disqualified = append(out.disqualified, candidate.SteamID)
			continue
		}

		out.winner = &candidate
		return out
	}
}

// rerollOutcome carries a selected replacement plus any drawn-but-disqualified
// candidates that still need a notification after the write commits.
type rerollOutcome struct {
	winner       *models.EntryRow
	disqualified []string
}

// releaseStaleReservations frees RESERVED stock older than the TTL that no
// active winner entry references anymore, so abandoned reservations never
// strand prize assets permanently.
func (s *RerollSweeper) releaseStaleReservations(ctx context.Context, g *models.Giveaway, reg *models.WinnerRegistry) (int, error) {
	items, err := s.repo.ListStock(ctx, g.ID)
	if err != nil {
		return 0, err
	}

	released := 0
	now := s.now()
	for _, item := range items {
		if item.Status != models.StockStatusReserved || item.ReservedAt == nil {
			continue
		}
		if now.Sub(*item.ReservedAt) < s.config.Claims.ReservationTTL {
			continue
		}

		idx := reg.FindBySteamID(item.ReservedBySteamID)
		if idx != -1 && reg.Entries[idx].PrizeStockID == item.ID {
			continue // still backing a live claim
		}

		if err := s.repo.ReleaseStockItem(ctx, item.ID); err != nil {
			if err != repository.ErrStockConflict && err != repository.ErrNotFound {
				s.log.Error().Err(err).Str("stock_id", item.ID).Msg("Failed to release stale reservation")
			}
			continue
		}
		released++
	}
	return released, nil
}
