// Package market holds the read models this core consumes from the event
// collaborator: events, markets and their selections, plus the
// market-type-specific rules that turn a final score into per-selection
// results. The core reads this data for settlement input and writes back
// result status; everything else about events is owned elsewhere.
package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the settlement variant of a market. Dispatch on it is exhaustive;
// there is no "unknown type" fallback.
type Type string

const (
	TypeWinDrawWin Type = "win_draw_win"
	TypeOverUnder  Type = "over_under"
	TypeSpread     Type = "spread"
)

// Side tags which outcome a selection represents. Settlement matches on this
// tag, never on display names.
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideDraw  Side = "draw"
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// Status describes a market's lifecycle.
type Status string

const (
	StatusOpen                Status = "open"
	StatusSuspended           Status = "suspended"
	StatusSettled             Status = "settled"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusVoided              Status = "voided"
)

// SelectionStatus describes a selection's lifecycle, from quoting through
// resolution.
type SelectionStatus string

const (
	SelectionActive    SelectionStatus = "active"
	SelectionSuspended SelectionStatus = "suspended"
	SelectionWinner    SelectionStatus = "winner"
	SelectionLoser     SelectionStatus = "loser"
	SelectionVoid      SelectionStatus = "void"
	SelectionPush      SelectionStatus = "push"
)

// EventStatus describes the real-world event's lifecycle.
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventLive      EventStatus = "live"
	EventFinished  EventStatus = "finished"
)

// Event is the real-world fixture markets hang off.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	HomeTeam  string      `json:"home_team"`
	AwayTeam  string      `json:"away_team"`
	Status    EventStatus `json:"status"`
	StartsAt  time.Time   `json:"starts_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Market groups the selections of one bettable question about an event.
// Line is set for over_under markets; HomeSpread/AwaySpread for spread
// markets.
type Market struct {
	ID         uuid.UUID       `json:"id"`
	EventID    uuid.UUID       `json:"event_id"`
	Type       Type            `json:"type"`
	Name       string          `json:"name"`
	Line       decimal.Decimal `json:"line"`
	HomeSpread decimal.Decimal `json:"home_spread"`
	AwaySpread decimal.Decimal `json:"away_spread"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Selection is one outcome choice within a market, carrying its live quoted
// odds and resolution status.
type Selection struct {
	ID         uuid.UUID       `json:"id"`
	MarketID   uuid.UUID       `json:"market_id"`
	Name       string          `json:"name"`
	Side       Side            `json:"side"`
	Odds       decimal.Decimal `json:"odds"`
	Status     SelectionStatus `json:"status"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Pending reports whether the selection still awaits resolution.
func (s *Selection) Pending() bool {
	return s.Status == SelectionActive || s.Status == SelectionSuspended
}

// Resolve moves a pending selection to its final result. Already-resolved
// selections are left untouched so redelivered settlements are harmless.
func (s *Selection) Resolve(result SelectionStatus) bool {
	if !s.Pending() {
		return false
	}
	s.Status = result
	now := time.Now()
	s.ResolvedAt = &now
	s.UpdatedAt = now
	return true
}
