package models

import "time"

// ClaimStatus is the lifecycle state of a winner's prize slot.
type ClaimStatus string

const (
	ClaimStatusPending            ClaimStatus = "pending"
	ClaimStatusPendingTrade       ClaimStatus = "pending_trade"
	ClaimStatusManualPending      ClaimStatus = "manual_pending"
	ClaimStatusManualContacted    ClaimStatus = "manual_contacted"
	ClaimStatusManualAwaitingUser ClaimStatus = "manual_awaiting_user"
	ClaimStatusManualSent         ClaimStatus = "manual_sent"
	ClaimStatusClaimed            ClaimStatus = "claimed"
	ClaimStatusForfeited          ClaimStatus = "forfeited"
	ClaimStatusRejected           ClaimStatus = "rejected"
)

// manualOrder fixes the forward direction of the staff-mediated chain.
var manualOrder = map[ClaimStatus]int{
	ClaimStatusManualPending:      0,
	ClaimStatusManualContacted:    1,
	ClaimStatusManualAwaitingUser: 2,
	ClaimStatusManualSent:         3,
}

// IsTerminal reports whether no further transition is allowed.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusClaimed || s == ClaimStatusForfeited || s == ClaimStatusRejected
}

// IsInFlight reports whether a claim was accepted and awaits fulfillment.
func (s ClaimStatus) IsInFlight() bool {
	_, manual := manualOrder[s]
	return s == ClaimStatusPendingTrade || manual
}

// IsManual reports whether the status belongs to the staff-mediated chain.
func (s ClaimStatus) IsManual() bool {
	_, ok := manualOrder[s]
	return ok
}

// CanTransition is the single authority on the winner state machine. Statuses
// only move forward; claimed, forfeited and rejected are terminal.
func CanTransition(from, to ClaimStatus) bool {
	switch from {
	case ClaimStatusPending:
		return to == ClaimStatusPendingTrade ||
			to == ClaimStatusManualPending ||
			to == ClaimStatusForfeited
	case ClaimStatusPendingTrade:
		return to == ClaimStatusClaimed
	}

	if fromOrd, ok := manualOrder[from]; ok {
		if to == ClaimStatusClaimed || to == ClaimStatusRejected {
			return true
		}
		if toOrd, ok := manualOrder[to]; ok {
			return toOrd > fromOrd
		}
	}

	return false
}

// WinnerEntry records one allocated prize slot and its claim progress.
type WinnerEntry struct {
	SteamID         string      `json:"steam_id"`
	Entries         int64       `json:"entries"`
	ClaimStatus     ClaimStatus `json:"claim_status"`
	ClaimDeadlineAt time.Time   `json:"claim_deadline_at"`
	ClaimedAt       *time.Time  `json:"claimed_at,omitempty"`
	ForfeitedAt     *time.Time  `json:"forfeited_at,omitempty"`
	ReminderSentAt  *time.Time  `json:"reminder_sent_at,omitempty"`
	PrizeStockID    string      `json:"prize_stock_id,omitempty"`
}

// IsActive reports whether the entry still occupies its slot. Forfeited and
// rejected slots are free for rerolling; everything else holds the slot.
func (e *WinnerEntry) IsActive() bool {
	return e.ClaimStatus != ClaimStatusForfeited && e.ClaimStatus != ClaimStatusRejected
}

// WinnerRegistry is the per-giveaway document of prize slots. Version guards
// every mutation: writes only commit when the stored version still matches.
type WinnerRegistry struct {
	GiveawayID string        `json:"giveaway_id"`
	Version    int64         `json:"version"`
	Entries    []WinnerEntry `json:"entries"`
}

// FindBySteamID returns the index of the active entry for steamID, or -1.
func (r *WinnerRegistry) FindBySteamID(steamID string) int {
	for i := range r.Entries {
		if r.Entries[i].SteamID == steamID && r.Entries[i].IsActive() {
			return i
		}
	}
	return -1
}

// FindInactiveBySteamID returns the index of the latest forfeited or rejected
// entry for steamID, or -1. Callers prefer FindBySteamID; this catches former
// winners whose slot was lost, so they get a status answer instead of a flat
// denial.
func (r *WinnerRegistry) FindInactiveBySteamID(steamID string) int {
	idx := -1
	for i := range r.Entries {
		if r.Entries[i].SteamID == steamID && !r.Entries[i].IsActive() {
			idx = i
		}
	}
	return idx
}

// ActiveSteamIDs returns the set of steamIDs currently holding a slot. The
// reroll candidate pool excludes all of them.
func (r *WinnerRegistry) ActiveSteamIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(r.Entries))
	for i := range r.Entries {
		if r.Entries[i].IsActive() {
			out[r.Entries[i].SteamID] = struct{}{}
		}
	}
	return out
}

// PendingCount counts entries still awaiting a claim.
func (r *WinnerRegistry) PendingCount() int {
	n := 0
	for i := range r.Entries {
		if r.Entries[i].ClaimStatus == ClaimStatusPending {
			n++
		}
	}
	return n
}
