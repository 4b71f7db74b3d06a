package service

import (
	"context"
	"sync"
	"time"

	"github.com/soccervortex/skinvault-backend/internal/features/claims/models"
	"github.com/soccervortex/skinvault-backend/internal/features/claims/repository"
	"github.com/soccervortex/skinvault-backend/internal/service/notifications"
)

// fakeRepo is an in-memory ClaimsRepository with the same CAS semantics as
// the Redis implementation: registry writes compare the document version and
// stock writes compare the item status. Documents are copied on read so a
// caller's mutation never leaks into the store before a successful write.
type fakeRepo struct {
	mu sync.Mutex

	giveaways    map[string]*models.Giveaway
	registries   map[string]*models.WinnerRegistry
	stock        map[string]*models.PrizeStockItem
	stockOrder   map[string][]string
	claims       map[string]*models.ClaimRecord
	manualClaims map[string]*models.ManualClaimRecord
	entries      map[string][]models.EntryRow
	settings     map[string]*models.UserSettings

	// beforeRegistryWrite, when set, runs inside UpdateWinnerRegistry before
	// the version check so tests can interleave a concurrent writer.
	beforeRegistryWrite func()

	// Injected read failures, standing in for a storage outage.
	getClaimErr    error
	getSettingsErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		giveaways:    make(map[string]*models.Giveaway),
		registries:   make(map[string]*models.WinnerRegistry),
		stock:        make(map[string]*models.PrizeStockItem),
		stockOrder:   make(map[string][]string),
		claims:       make(map[string]*models.ClaimRecord),
		manualClaims: make(map[string]*models.ManualClaimRecord),
		entries:      make(map[string][]models.EntryRow),
		settings:     make(map[string]*models.UserSettings),
	}
}

func claimKey(giveawayID, steamID string) string {
	return giveawayID + "/" + steamID
}

func copyRegistry(reg *models.WinnerRegistry) *models.WinnerRegistry {
	out := *reg
	out.Entries = make([]models.WinnerEntry, len(reg.Entries))
	copy(out.Entries, reg.Entries)
	return &out
}

func copyStockItem(item *models.PrizeStockItem) *models.PrizeStockItem {
	out := *item
	return &out
}

func (f *fakeRepo) CreateGiveaway(ctx context.Context, g *models.Giveaway) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *g
	f.giveaways[g.ID] = &cp
	return nil
}

func (f *fakeRepo) GetGiveaway(ctx context.Context, id string) (*models.Giveaway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.giveaways[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeRepo) ArchiveGiveaway(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.giveaways[id]
	if !ok {
		return repository.ErrNotFound
	}
	g.ArchivedAt = &at
	return nil
}

func (f *fakeRepo) PutWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registries[reg.GiveawayID] = copyRegistry(reg)
	return nil
}

func (f *fakeRepo) GetWinnerRegistry(ctx context.Context, giveawayID string) (*models.WinnerRegistry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registries[giveawayID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRegistry(reg), nil
}

func (f *fakeRepo) UpdateWinnerRegistry(ctx context.Context, reg *models.WinnerRegistry) error {
	if f.beforeRegistryWrite != nil {
		hook := f.beforeRegistryWrite
		f.beforeRegistryWrite = nil
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.registries[reg.GiveawayID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != reg.Version {
		return repository.ErrVersionConflict
	}
	next := copyRegistry(reg)
	next.Version++
	f.registries[reg.GiveawayID] = next
	reg.Version = next.Version
	return nil
}

func (f *fakeRepo) ListClaimPendingGiveaways(ctx context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, reg := range f.registries {
		if reg.PendingCount() > 0 {
			out = append(out, id)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateStockItem(ctx context.Context, item *models.PrizeStockItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[item.ID] = copyStockItem(item)
	f.stockOrder[item.GiveawayID] = append(f.stockOrder[item.GiveawayID], item.ID)
	return nil
}

func (f *fakeRepo) GetStockItem(ctx context.Context, id string) (*models.PrizeStockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.stock[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyStockItem(item), nil
}

func (f *fakeRepo) ListStock(ctx context.Context, giveawayID string) ([]*models.PrizeStockItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PrizeStockItem
	for _, id := range f.stockOrder[giveawayID] {
		if item, ok := f.stock[id]; ok {
			out = append(out, copyStockItem(item))
		}
	}
	return out, nil
}

func (f *fakeRepo) ReserveStockItem(ctx context.Context, itemID, steamID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.stock[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	if item.Status != models.StockStatusAvailable {
		return repository.ErrStockConflict
	}
	item.Status = models.StockStatusReserved
	item.ReservedBySteamID = steamID
	reserved := at
	item.ReservedAt = &reserved
	return nil
}

func (f *fakeRepo) ReleaseStockItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.stock[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	if item.Status != models.StockStatusReserved {
		return repository.ErrStockConflict
	}
	item.Status = models.StockStatusAvailable
	item.ReservedBySteamID = ""
	item.ReservedAt = nil
	return nil
}

func (f *fakeRepo) DeliverStockItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.stock[itemID]
	if !ok {
		return repository.ErrNotFound
	}
	if item.Status != models.StockStatusReserved {
		return repository.ErrStockConflict
	}
	item.Status = models.StockStatusDelivered
	return nil
}

func (f *fakeRepo) GetClaim(ctx context.Context, giveawayID, steamID string) (*models.ClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getClaimErr != nil {
		return nil, f.getClaimErr
	}
	rec, ok := f.claims[claimKey(giveawayID, steamID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) UpsertClaim(ctx context.Context, rec *models.ClaimRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.claims[claimKey(rec.GiveawayID, rec.SteamID)] = &cp
	return nil
}

func (f *fakeRepo) GetManualClaim(ctx context.Context, giveawayID, steamID string) (*models.ManualClaimRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.manualClaims[claimKey(giveawayID, steamID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) UpsertManualClaim(ctx context.Context, rec *models.ManualClaimRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.manualClaims[claimKey(rec.GiveawayID, rec.SteamID)] = &cp
	return nil
}

func (f *fakeRepo) SetEntries(ctx context.Context, giveawayID string, rows []models.EntryRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]models.EntryRow, len(rows))
	copy(cp, rows)
	f.entries[giveawayID] = cp
	return nil
}

func (f *fakeRepo) GetEntries(ctx context.Context, giveawayID string) ([]models.EntryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.entries[giveawayID]
	cp := make([]models.EntryRow, len(rows))
	copy(cp, rows)
	return cp, nil
}

func (f *fakeRepo) SetUserSettings(ctx context.Context, s *models.UserSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.settings[s.SteamID] = &cp
	return nil
}

func (f *fakeRepo) GetUserSettings(ctx context.Context, steamID string) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getSettingsErr != nil {
		return nil, f.getSettingsErr
	}
	s, ok := f.settings[steamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// fakeNotifier records notifications and manual-claim webhook calls.
type fakeNotifier struct {
	mu         sync.Mutex
	sent       []sentNotification
	summaries  []*notifications.ManualClaimSummary
	webhookErr error
}

type sentNotification struct {
	SteamID string
	Type    string
}

func (n *fakeNotifier) Notify(ctx context.Context, steamID, notifType, title, body string, meta map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{SteamID: steamID, Type: notifType})
}

func (n *fakeNotifier) SendManualClaim(ctx context.Context, summary *notifications.ManualClaimSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return n.webhookErr
}

func (n *fakeNotifier) ofType(notifType string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Type == notifType {
			out = append(out, s)
		}
	}
	return out
}
