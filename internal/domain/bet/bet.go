// Package bet defines the bet aggregate: the Bet record, its selections, the
// odds arithmetic fixed at placement time, and the cascade rules that turn
// selection results into a bet-level outcome.
package bet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/shared"
)

// Type distinguishes a single-selection bet from an accumulator.
type Type string

const (
	TypeSingle      Type = "single"
	TypeAccumulator Type = "accumulator"
)

// Status is the bet lifecycle state. Every state but open is terminal.
type Status string

const (
	StatusOpen      Status = "open"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusVoid      Status = "void"
	StatusCashedOut Status = "cashed_out"
)

// SelectionStatus is the resolution state of one bet leg.
type SelectionStatus string

const (
	SelectionPending SelectionStatus = "pending"
	SelectionWon     SelectionStatus = "won"
	SelectionLost    SelectionStatus = "lost"
	SelectionVoid    SelectionStatus = "void"
	SelectionPush    SelectionStatus = "push"
)

// Bet is a wager over one or more selections whose odds were locked at
// placement. PotentialWin is fixed then and never recomputed; settlement may
// pay a different amount when legs void out.
type Bet struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Type          Type             `json:"type"`
	Stake         decimal.Decimal  `json:"stake"`
	TotalOdds     decimal.Decimal  `json:"total_odds"`
	PotentialWin  decimal.Decimal  `json:"potential_win"`
	Status        Status           `json:"status"`
	SettledAmount *decimal.Decimal `json:"settled_amount,omitempty"`
	CashoutAmount *decimal.Decimal `json:"cashout_amount,omitempty"`
	LockID        uuid.UUID        `json:"lock_id"`
	Selections    []*Selection     `json:"selections"`
	Version       int              `json:"version"`
	SettledAt     *time.Time       `json:"settled_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Selection is one leg of a bet, pinned to the odds quoted at placement.
type Selection struct {
	ID              uuid.UUID       `json:"id"`
	BetID           uuid.UUID       `json:"bet_id"`
	EventID         uuid.UUID       `json:"event_id"`
	MarketID        uuid.UUID       `json:"market_id"`
	SelectionID     uuid.UUID       `json:"selection_id"`
	Side            market.Side     `json:"side"`
	OddsAtPlacement decimal.Decimal `json:"odds_at_placement"`
	Status          SelectionStatus `json:"status"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

// Leg describes one selection of a bet under placement.
type Leg struct {
	EventID         uuid.UUID
	MarketID        uuid.UUID
	SelectionID     uuid.UUID
	Side            market.Side
	OddsAtPlacement decimal.Decimal
}

// CombinedOdds multiplies the legs' odds and rounds to two decimals.
func CombinedOdds(odds []decimal.Decimal) decimal.Decimal {
	combined := decimal.NewFromInt(1)
	for _, o := range odds {
		combined = combined.Mul(o)
	}
	return combined.Round(2)
}

// PotentialWin is the fixed payout of a winning bet: stake times total odds,
// rounded to two decimals.
func PotentialWin(stake, totalOdds decimal.Decimal) decimal.Decimal {
	return stake.Mul(totalOdds).Round(2)
}

// New assembles an open bet over the given legs. Total odds and potential
// win are locked in here.
func New(userID uuid.UUID, betType Type, stake decimal.Decimal, lockID uuid.UUID, legs []Leg) *Bet {
	odds := make([]decimal.Decimal, 0, len(legs))
	for _, leg := range legs {
		odds = append(odds, leg.OddsAtPlacement)
	}
	totalOdds := CombinedOdds(odds)

	now := time.Now()
	b := &Bet{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         betType,
		Stake:        stake,
		TotalOdds:    totalOdds,
		PotentialWin: PotentialWin(stake, totalOdds),
		Status:       StatusOpen,
		LockID:       lockID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, leg := range legs {
		b.Selections = append(b.Selections, &Selection{
			ID:              uuid.New(),
			BetID:           b.ID,
			EventID:         leg.EventID,
			MarketID:        leg.MarketID,
			SelectionID:     leg.SelectionID,
			Side:            leg.Side,
			OddsAtPlacement: leg.OddsAtPlacement,
			Status:          SelectionPending,
		})
	}
	return b
}

// SelectionByID finds the leg referencing the given market selection.
func (b *Bet) SelectionByID(selectionID uuid.UUID) *Selection {
	for _, sel := range b.Selections {
		if sel.SelectionID == selectionID {
			return sel
		}
	}
	return nil
}

// ResolveSelection records the outcome of one leg. Already-resolved legs are
// untouched, making redelivered settlements harmless. Returns whether the
// leg transitioned.
func (b *Bet) ResolveSelection(selectionID uuid.UUID, outcome SelectionStatus) bool {
	sel := b.SelectionByID(selectionID)
	if sel == nil || sel.Status != SelectionPending {
		return false
	}
	sel.Status = outcome
	now := time.Now()
	sel.ResolvedAt = &now
	return true
}

// MarkSettled finalizes the bet with the given terminal status and amount.
// Fails BET_ALREADY_SETTLED when the bet already left open, which makes
// settlement idempotent against redelivery.
func (b *Bet) MarkSettled(status Status, settledAmount decimal.Decimal) error {
	if b.Status != StatusOpen {
		return shared.NewError(shared.KindBetAlreadySettled, "bet is "+string(b.Status))
	}
	b.Status = status
	b.SettledAmount = &settledAmount
	now := time.Now()
	b.SettledAt = &now
	b.UpdatedAt = now
	b.Version++
	return nil
}

// MarkCashedOut finalizes the bet as cashed out at the given value. Terminal;
// the bet is excluded from further settlement.
func (b *Bet) MarkCashedOut(value decimal.Decimal) error {
	if b.Status != StatusOpen {
		return shared.NewError(shared.KindBetAlreadySettled, "bet is "+string(b.Status))
	}
	b.Status = StatusCashedOut
	b.CashoutAmount = &value
	now := time.Now()
	b.SettledAt = &now
	b.UpdatedAt = now
	b.Version++
	return nil
}

// MapSelectionResult translates a market-level selection result into the bet
// leg vocabulary. Push legs refund their share by dropping to odds 1, same
// as void legs, but keep their distinct status for reporting.
func MapSelectionResult(result market.SelectionStatus) (SelectionStatus, bool) {
	switch result {
	case market.SelectionWinner:
		return SelectionWon, true
	case market.SelectionLoser:
		return SelectionLost, true
	case market.SelectionVoid:
		return SelectionVoid, true
	case market.SelectionPush:
		return SelectionPush, true
	}
	return "", false
}
