package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is the outcome of validating a caller's expected odds against the
// live quote.
type Quote struct {
	Valid       bool
	CurrentOdds decimal.Decimal
	Reason      string
}

// OddsInfo is the live quote of one selection.
type OddsInfo struct {
	Odds   decimal.Decimal
	Status SelectionStatus
}

// OddsOracle supplies current quoted odds and a staleness-tolerance check.
// It is consumed, not implemented, by the betting core; the concrete client
// reads the external feed's cache.
type OddsOracle interface {
	// Validate checks the caller's expected odds against the current quote.
	// Suspended selections always fail validation. A relative drift above
	// tolerance fails with reason "Odds have changed".
	Validate(ctx context.Context, selectionID uuid.UUID, expectedOdds, tolerance decimal.Decimal) (Quote, error)

	// GetOdds returns the current quote for a selection.
	GetOdds(ctx context.Context, selectionID uuid.UUID) (OddsInfo, error)
}
