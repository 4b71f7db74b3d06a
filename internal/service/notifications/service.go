package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/soccervortex/skinvault-backend/internal/common/logger"
)

// Notification types emitted by the claim engine.
const (
	TypeClaimQueued     = "claim_queued"
	TypeClaimReminder   = "claim_reminder"
	TypeWinnerRerolled  = "winner_rerolled"
	TypeTradeURLInvalid = "trade_url_invalid"
	TypeClaimFulfilled  = "claim_fulfilled"
)

const (
	notificationsPerUser = 100
	webhookTimeout       = 5 * time.Second
)

// Notification is what lands in a user's inbox. Delivery to an actual push
// channel is owned by an external collaborator reading these records.
type Notification struct {
	SteamID   string                 `json:"steam_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ManualClaimSummary is the payload posted to the staff webhook when a
// manual claim arrives.
type ManualClaimSummary struct {
	GiveawayID      string `json:"giveaway_id"`
	GiveawayTitle   string `json:"giveaway_title"`
	SteamID         string `json:"steam_id"`
	DiscordUsername string `json:"discord_username"`
	DiscordID       string `json:"discord_id"`
	Email           string `json:"email,omitempty"`
}

// Service persists notifications and posts staff webhooks. All sends are
// best effort: failures are logged, never returned to claim flows.
type Service struct {
	rdb        *redis.Client
	webhookURL string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewService(rdb *redis.Client, webhookURL string) *Service {
	return &Service{
		rdb:        rdb,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
		log:        logger.With("notifications"),
	}
}

func makeInboxKey(steamID string) string {
	return "user:" + steamID + ":notifications"
}

// Notify appends a notification to the user's inbox, capped to the most
// recent entries.
func (s *Service) Notify(ctx context.Context, steamID, notifType, title, body string, meta map[string]interface{}) {
	if s == nil || s.rdb == nil || steamID == "" {
		return
	}

	n := Notification{
		SteamID:   steamID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Meta:      meta,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(&n)
	if err != nil {
		s.log.Error().Err(err).Str("steam_id", steamID).Msg("Failed to marshal notification")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, makeInboxKey(steamID), data)
	pipe.LTrim(ctx, makeInboxKey(steamID), 0, notificationsPerUser-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error().Err(err).
			Str("steam_id", steamID).
			Str("type", notifType).
			Msg("Failed to store notification")
		return
	}

	s.log.Debug().
		Str("steam_id", steamID).
		Str("type", notifType).
		Msg("Notification stored")
}

// SendManualClaim posts the claim summary to the configured staff webhook.
func (s *Service) SendManualClaim(ctx context.Context, summary *ManualClaimSummary) error {
	if s == nil || s.webhookURL == "" {
		return nil
	}

	content := fmt.Sprintf(
		"Manual claim: giveaway %q, steam %s, discord %s (%s)",
		summary.GiveawayTitle, summary.SteamID, summary.DiscordUsername, summary.DiscordID,
	)

	payload, err := json.Marshal(map[string]interface{}{
		"content": content,
		"claim":   summary,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
