package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/repository"
)

const (
	keyPrefixGiveaway    = "giveaway:"
	keyPrefixStock       = "stock:"
	keyPrefixClaim       = "claim:"
	keyPrefixManualClaim = "manual_claim:"
	keyPrefixUser        = "user:"
	keyClaimPending      = "giveaways:claim_pending"
)

type redisRepository struct {
	client *redis.Client
}

func NewClaimsRepository(client *redis.Client) repository.ClaimsRepository {
	return &redisRepository{client: client}
}

func makeGiveawayKey(id string) string {
	return keyPrefixGiveaway + id
}

func makeWinnersKey(giveawayID string) string {
	return makeGiveawayKey(giveawayID) + ":winners"
}

func makeStockIndexKey(giveawayID string) string {
	return makeGiveawayKey(giveawayID) + ":stock"
}

func makeEntriesKey(giveawayID string) string {
	return makeGiveawayKey(giveawayID) + ":entries"
}

func makeStockKey(itemID string) string {
	return keyPrefixStock + itemID
}

func makeClaimKey(giveawayID, steamID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefixClaim, giveawayID, steamID)
}

func makeManualClaimKey(giveawayID, steamID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefixManualClaim, giveawayID, steamID)
}

func makeUserSettingsKey(steamID string) string {
	return keyPrefixUser + steamID + ":settings"
}

func (r *redisRepository) getJSON(ctx context.Context, key string, out interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (r *redisRepository) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, 0).Err()
}

// Giveaways

func (r *redisRepository) CreateGiveaway(ctx context.Context, g *models.Giveaway) error {
	return r.setJSON(ctx, makeGiveawayKey(g.ID), g)
}

func (r *redisRepository) GetGiveaway(ctx context.Context, id string) (*models.Giveaway, error) {
	var g models.Giveaway
	if err := r.getJSON(ctx, makeGiveawayKey(id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *redisRepository) ArchiveGiveaway(ctx context.Context, id string, at time.Time) error {
	g, err := r.GetGiveaway(ctx, id)
	if err != nil {
		return err
	}
	if g.ArchivedAt == nil {
		g.ArchivedAt = &at
	}

	data, err := json.Marshal(g)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeGiveawayKey(id), data, 0)
	pipe.SRem(ctx, keyClaimPending, id)
	_, err = pipe.Exec(ctx)
	return err
}

// Winner registries

func (r *redisRepository) PutWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeWinnersKey(reg.GiveawayID), data, 0)
	if reg.PendingCount() > 0 {
		pipe.SAdd(ctx, keyClaimPending, reg.GiveawayID)
	} else {
		pipe.SRem(ctx, keyClaimPending, reg.GiveawayID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetWinnerRegistry(ctx context.Context, giveawayID string) (*models.WinnerRegistry, error) {
	var reg models.WinnerRegistry
	if err := r.getJSON(ctx, makeWinnersKey(giveawayID), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// UpdateWinnerRegistry commits the whole registry document in one optimistic
// transaction keyed on the version field. WATCH aborts the EXEC if any other
// writer touched the key between our read and write, and the version check
// catches writers the caller raced before this call.
func (r *redisRepository) UpdateWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error {
	key := makeWinnersKey(reg.GiveawayID)

	next := *reg
	next.Version = reg.Version + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored models.WinnerRegistry
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		if stored.Version != reg.Version {
			return repository.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if next.PendingCount() > 0 {
				pipe.SAdd(ctx, keyClaimPending, reg.GiveawayID)
			} else {
				pipe.SRem(ctx, keyClaimPending, reg.GiveawayID)
			}
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		return repository.ErrVersionConflict
	}
	if err != nil {
		return err
	}

	reg.Version = next.Version
	return nil
}

func (r *redisRepository) ListClaimPendingGiveaways(ctx context.Context, limit int) ([]string, error) {
	ids, err := r.client.SMembers(ctx, keyClaimPending).Result()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Prize stock

func (r *redisRepository) CreateStockItem(ctx context.Context, item *models.PrizeStockItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, makeStockKey(item.ID), data, 0)
	pipe.RPush(ctx, makeStockIndexKey(item.GiveawayID), item.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisRepository) GetStockItem(ctx context.Context, id string) (*models.PrizeStockItem, error) {
	var item models.PrizeStockItem
	if err := r.getJSON(ctx, makeStockKey(id), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *redisRepository) ListStock(ctx context.Context, giveawayID string) ([]*models.PrizeStockItem, error) {
	ids, err := r.client.LRange(ctx, makeStockIndexKey(giveawayID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = makeStockKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*models.PrizeStockItem, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var item models.PrizeStockItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, nil
}

// casStockItem rewrites one stock item inside a WATCH transaction, succeeding
// only if mutate approves the stored state and no concurrent writer touched
// the key.
func (r *redisRepository) casStockItem(ctx context.Context, itemID string, mutate func(*models.PrizeStockItem) error) error {
	key := makeStockKey(itemID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}

		var item models.PrizeStockItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		if err := mutate(&item); err != nil {
			return err
		}

		payload, err := json.Marshal(&item)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		return repository.ErrStockConflict
	}
	return err
}

func (r *redisRepository) ReserveStockItem(ctx context.Context, itemID, steamID string, at time.Time) error {
	return r.casStockItem(ctx, itemID, func(item *models.PrizeStockItem) error {
		if item.Status != models.StockStatusAvailable {
			return repository.ErrStockConflict
		}
		item.Status = models.StockStatusReserved
		item.ReservedBySteamID = steamID
		item.ReservedAt = &at
		return nil
	})
}

func (r *redisRepository) ReleaseStockItem(ctx context.Context, itemID string) error {
	return r.casStockItem(ctx, itemID, func(item *models.PrizeStockItem) error {
		if item.Status != models.StockStatusReserved {
			return repository.ErrStockConflict
		}
		item.Status = models.StockStatusAvailable
		item.ReservedBySteamID = ""
		item.ReservedAt = nil
		return nil
	})
}

func (r *redisRepository) DeliverStockItem(ctx context.Context, itemID string) error {
	return r.casStockItem(ctx, itemID, func(item *models.PrizeStockItem) error {
		if item.Status != models.StockStatusReserved {
			return repository.ErrStockConflict
		}
		item.Status = models.StockStatusDelivered
		return nil
	})
}

// Claim records

func (r *redisRepository) GetClaim(ctx context.Context, giveawayID, steamID string) (*models.ClaimRecord, error) {
	var rec models.ClaimRecord
	if err := r.getJSON(ctx, makeClaimKey(giveawayID, steamID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *redisRepository) UpsertClaim(ctx context.Context, rec *models.ClaimRecord) error {
	return r.setJSON(ctx, makeClaimKey(rec.GiveawayID, rec.SteamID), rec)
}

func (r *redisRepository) GetManualClaim(ctx context.Context, giveawayID, steamID string) (*models.ManualClaimRecord, error) {
	var rec models.ManualClaimRecord
	if err := r.getJSON(ctx, makeManualClaimKey(giveawayID, steamID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *redisRepository) UpsertManualClaim(ctx context.Context, rec *models.ManualClaimRecord) error {
	return r.setJSON(ctx, makeManualClaimKey(rec.GiveawayID, rec.SteamID), rec)
}

// Reroll candidate pool

func (r *redisRepository) SetEntries(ctx context.Context, giveawayID string, rows []models.EntryRow) error {
	return r.setJSON(ctx, makeEntriesKey(giveawayID), rows)
}

func (r *redisRepository) GetEntries(ctx context.Context, giveawayID string) ([]models.EntryRow, error) {
	var rows []models.EntryRow
	err := r.getJSON(ctx, makeEntriesKey(giveawayID), &rows)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// User settings

func (r *redisRepository) SetUserSettings(ctx context.Context, s *models.UserSettings) error {
	return r.setJSON(ctx, makeUserSettingsKey(s.SteamID), s)
}

func (r *redisRepository) GetUserSettings(ctx context.Context, steamID string) (*models.UserSettings, error) {
	var s models.UserSettings
	if err := r.getJSON(ctx, makeUserSettingsKey(steamID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
