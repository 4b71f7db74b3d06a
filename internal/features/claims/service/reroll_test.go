package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
)

func TestWeightedPickDistribution(t *testing.T) {
	pool := []models.EntryRow{
		{SteamID: "a", Entries: 10},
		{SteamID: "b", Entries: 30},
		{SteamID: "c", Entries: 60},
	}
	rng := rand.New(rand.NewSource(42))

	const draws = 100000
	counts := make(map[string]int)
	for i := 0; i < draws; i++ {
		idx := weightedPick(rng, pool, nil)
		require.NotEqual(t, -1, idx)
		counts[pool[idx].SteamID]++
	}

	// Expected shares are 10%, 30% and 60%; allow two points of drift.
	assert.InDelta(t, 0.10, float64(counts["a"])/draws, 0.02)
	assert.InDelta(t, 0.30, float64(counts["b"])/draws, 0.02)
	assert.InDelta(t, 0.60, float64(counts["c"])/draws, 0.02)
}

func TestWeightedPickSkipsExcluded(t *testing.T) {
	pool := []models.EntryRow{
		{SteamID: "a", Entries: 1000000},
		{SteamID: "b", Entries: 1},
	}
	rng := rand.New(rand.NewSource(1))
	excluded := map[string]struct{}{"a": {}}

	for i := 0; i < 100; i++ {
		idx := weightedPick(rng, pool, excluded)
		require.Equal(t, 1, idx)
	}
}

func TestWeightedPickIgnoresNonPositiveWeights(t *testing.T) {
	pool := []models.EntryRow{
		{SteamID: "a", Entries: 0},
		{SteamID: "b", Entries: -5},
		{SteamID: "c", Entries: 3},
	}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		assert.Equal(t, 2, weightedPick(rng, pool, nil))
	}
}

func TestWeightedPickEmptyPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Equal(t, -1, weightedPick(rng, nil, nil))
	assert.Equal(t, -1, weightedPick(rng, []models.EntryRow{{SteamID: "a", Entries: 0}}, nil))
	assert.Equal(t, -1, weightedPick(rng,
		[]models.EntryRow{{SteamID: "a", Entries: 5}},
		map[string]struct{}{"a": {}}))
}

func TestRerolledEntryStartsFresh(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	winner := &models.EntryRow{SteamID: "76561198000000009", Entries: 7}

	entry := rerolledEntry(winner, now, 24*time.Hour)

	assert.Equal(t, winner.SteamID, entry.SteamID)
	assert.Equal(t, int64(7), entry.Entries)
	assert.Equal(t, models.ClaimStatusPending, entry.ClaimStatus)
	assert.Equal(t, now.Add(24*time.Hour), entry.ClaimDeadlineAt)
	assert.Nil(t, entry.ClaimedAt)
	assert.Nil(t, entry.ForfeitedAt)
	assert.Nil(t, entry.ReminderSentAt)
	assert.Empty(t, entry.PrizeStockID)
}
