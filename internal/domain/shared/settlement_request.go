package shared

import (
	"time"

	"github.com/google/uuid"
)

// SettlementRequestType names the operation a settlement request asks for.
type SettlementRequestType string

const (
	SettlementRequestSettleEvent  SettlementRequestType = "settle_event"
	SettlementRequestSettleMarket SettlementRequestType = "settle_market"
	SettlementRequestVoidMarket   SettlementRequestType = "void_market"
	SettlementRequestRetry        SettlementRequestType = "retry"
)

// SelectionResultInput is one selection outcome inside a settle_market
// request. Result uses the selection result vocabulary: winner, loser, void,
// push.
type SelectionResultInput struct {
	SelectionID uuid.UUID `json:"selection_id"`
	Result      string    `json:"result"`
}

// SettlementRequest is the Kafka message consumed by the settlement
// processor. Exactly the fields relevant to Type are set; redelivery is
// at-least-once, so every operation it triggers must be idempotent.
type SettlementRequest struct {
	RequestID     uuid.UUID             `json:"request_id"`
	Type          SettlementRequestType `json:"type"`
	CorrelationID string                `json:"correlation_id,omitempty"`

	EventID   uuid.UUID `json:"event_id,omitempty"`
	HomeScore int       `json:"home_score,omitempty"`
	AwayScore int       `json:"away_score,omitempty"`

	MarketID uuid.UUID              `json:"market_id,omitempty"`
	Results  []SelectionResultInput `json:"results,omitempty"`

	VoidReason string `json:"void_reason,omitempty"`

	SettlementID uuid.UUID `json:"settlement_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
