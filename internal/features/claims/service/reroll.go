package service

import (
	"math/rand"
	"time"

	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
)

// weightedPick draws one candidate with probability proportional to its
// entries, skipping the excluded set. Draw r in [0, total), walk the list
// subtracting weights; the first candidate taking the remainder negative
// wins, ties resolved by list order. Returns -1 when no eligible weight
// remains.
func weightedPick(rng *rand.Rand, pool []models.EntryRow, excluded map[string]struct{}) int {
	var total int64
	for i := range pool {
		if _, skip := excluded[pool[i].SteamID]; skip {
			continue
		}
		if pool[i].Entries > 0 {
			total += pool[i].Entries
		}
	}
	if total <= 0 {
		return -1
	}

	r := rng.Int63n(total)
	for i := range pool {
		if _, skip := excluded[pool[i].SteamID]; skip {
			continue
		}
		if pool[i].Entries <= 0 {
			continue
		}
		r -= pool[i].Entries
		if r < 0 {
			return i
		}
	}
	return -1
}

// rerolledEntry builds the fresh winner entry that overwrites a forfeited
// slot: pending status, a full new claim window, and all prior claim
// timestamps cleared.
func rerolledEntry(winner *models.EntryRow, now time.Time, claimWindow time.Duration) models.WinnerEntry {
	return models.WinnerEntry{
		SteamID:         winner.SteamID,
		Entries:         winner.Entries,
		ClaimStatus:     models.ClaimStatusPending,
		ClaimDeadlineAt: now.Add(claimWindow),
	}
}
