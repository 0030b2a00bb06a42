package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a domain event published on the betting events topic.
type EventType string

const (
	EventBetPlaced           EventType = "bet.placed"
	EventBetSettled          EventType = "bet.settled"
	EventBetCashedOut        EventType = "bet.cashedOut"
	EventWalletDeposit       EventType = "wallet.deposit"
	EventWalletWithdrawal    EventType = "wallet.withdrawal"
	EventWalletCredit        EventType = "wallet.credit"
	EventMarketStatusChanged EventType = "market.statusChanged"
	EventSelectionSettled    EventType = "selection.settled"
)

// Event is the envelope written to the betting events topic. Consumers
// dispatch on Type and decode Payload accordingly.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Type          EventType `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	Payload       any       `json:"payload"`
}

// BetPlacedPayload notifies that a bet was accepted and its stake captured.
type BetPlacedPayload struct {
	BetID        uuid.UUID       `json:"bet_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Stake        decimal.Decimal `json:"stake"`
	PotentialWin decimal.Decimal `json:"potential_win"`
}

// BetSettledPayload notifies that a bet reached a terminal settlement state.
type BetSettledPayload struct {
	BetID         uuid.UUID       `json:"bet_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Result        string          `json:"result"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
}

// BetCashedOutPayload notifies that a bet was cashed out early.
type BetCashedOutPayload struct {
	BetID         uuid.UUID       `json:"bet_id"`
	UserID        uuid.UUID       `json:"user_id"`
	CashoutAmount decimal.Decimal `json:"cashout_amount"`
}

// WalletMovementPayload covers deposit, withdrawal and credit notifications.
type WalletMovementPayload struct {
	UserID        uuid.UUID       `json:"user_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty"`
}

// MarketStatusChangedPayload is consumed by the event collaborator to update
// display state.
type MarketStatusChangedPayload struct {
	MarketID uuid.UUID `json:"market_id"`
	Status   string    `json:"status"`
}

// SelectionSettledPayload reports the final outcome of one selection.
type SelectionSettledPayload struct {
	SelectionID uuid.UUID `json:"selection_id"`
	MarketID    uuid.UUID `json:"market_id"`
	Result      string    `json:"result"`
}

// NewEvent builds an event envelope stamped with a fresh id and the current
// time.
func NewEvent(eventType EventType, correlationID string, payload any) *Event {
	return &Event{
		ID:            uuid.New(),
		Type:          eventType,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}
