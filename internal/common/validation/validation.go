package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	tradeOfferHost = "steamcommunity.com"
	tradeOfferPath = "/tradeoffer/new/"

	// Shown alongside trade URL validation errors so the user can self-serve.
	TradeURLRemediation = "Open Steam > Inventory > Trade Offers > Who can send me Trade Offers and copy your full trade URL"
)

var (
	partnerRegex    = regexp.MustCompile(`^[0-9]+$`)
	tradeTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)
	steamIDRegex    = regexp.MustCompile(`^[0-9]{17}$`)
	discordIDRegex  = regexp.MustCompile(`^[0-9]{17,20}$`)
)

// ValidateTradeURL checks the structure of a Steam trade offer URL:
// https://steamcommunity.com/tradeoffer/new/?partner=<digits>&token=<token>.
func ValidateTradeURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("trade URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("trade URL is not a valid URL")
	}

	if u.Scheme != "https" {
		return fmt.Errorf("trade URL must use https")
	}

	if !strings.EqualFold(u.Hostname(), tradeOfferHost) {
		return fmt.Errorf("trade URL host must be %s", tradeOfferHost)
	}

	if u.EscapedPath() != tradeOfferPath {
		return fmt.Errorf("trade URL path must be %s", tradeOfferPath)
	}

	q := u.Query()
	if !partnerRegex.MatchString(q.Get("partner")) {
		return fmt.Errorf("trade URL must carry a numeric partner parameter")
	}

	if !tradeTokenRegex.MatchString(q.Get("token")) {
		return fmt.Errorf("trade URL must carry a token parameter")
	}

	return nil
}

// ValidateSteamID checks a 64-bit SteamID in its canonical 17-digit form.
func ValidateSteamID(steamID string) error {
	if !steamIDRegex.MatchString(steamID) {
		return fmt.Errorf("steam id must be a 17-digit SteamID64")
	}
	return nil
}

// ValidateDiscordID checks a Discord snowflake.
func ValidateDiscordID(discordID string) error {
	if !discordIDRegex.MatchString(discordID) {
		return fmt.Errorf("discord id must be a numeric snowflake")
	}
	return nil
}
