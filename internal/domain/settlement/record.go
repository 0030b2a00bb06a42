// Package settlement defines the settlement record: the durable account of
// one settlement attempt over a market, including the per-selection failures
// that the retry operation re-drives. A whole-event settlement is never
// rolled back for a partial failure; it converges via retry.
package settlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/sportsbook-betting-core/internal/domain/market"
)

// Kind distinguishes what triggered the settlement.
type Kind string

const (
	KindMarket Kind = "market"
	KindEvent  Kind = "event"
	KindVoid   Kind = "void"
)

// Status is the terminal state of a settlement attempt.
type Status string

const (
	StatusSettled             Status = "settled"
	StatusCompletedWithErrors Status = "completed_with_errors"
)

// SelectionOutcome records the result applied to one selection.
type SelectionOutcome struct {
	SelectionID uuid.UUID              `json:"selection_id" bson:"selection_id"`
	Result      market.SelectionStatus `json:"result" bson:"result"`
}

// SelectionFailure records why one selection could not be settled.
type SelectionFailure struct {
	SelectionID uuid.UUID              `json:"selection_id" bson:"selection_id"`
	Result      market.SelectionStatus `json:"result" bson:"result"`
	Reason      string                 `json:"reason" bson:"reason"`
}

// Record is the durable account of one settlement attempt over a market.
// Event settlements carry the final score, so a retry can re-derive results
// that never got past derivation on the first attempt.
type Record struct {
	ID         uuid.UUID          `json:"id" bson:"settlement_id"`
	MarketID   uuid.UUID          `json:"market_id" bson:"market_id"`
	EventID    *uuid.UUID         `json:"event_id,omitempty" bson:"event_id,omitempty"`
	Kind       Kind               `json:"kind" bson:"kind"`
	Status     Status             `json:"status" bson:"status"`
	VoidReason string             `json:"void_reason,omitempty" bson:"void_reason,omitempty"`
	Score      *market.Score      `json:"score,omitempty" bson:"score,omitempty"`
	Outcomes   []SelectionOutcome `json:"outcomes" bson:"outcomes"`
	Failures   []SelectionFailure `json:"failures,omitempty" bson:"failures,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// NewRecord opens a settlement record for a market.
func NewRecord(kind Kind, marketID uuid.UUID, eventID *uuid.UUID) *Record {
	now := time.Now()
	return &Record{
		ID:        uuid.New(),
		MarketID:  marketID,
		EventID:   eventID,
		Kind:      kind,
		Status:    StatusSettled,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordOutcome notes a successfully applied selection result.
func (r *Record) RecordOutcome(selectionID uuid.UUID, result market.SelectionStatus) {
	r.Outcomes = append(r.Outcomes, SelectionOutcome{SelectionID: selectionID, Result: result})
	r.UpdatedAt = time.Now()
}

// RecordFailure notes a failed selection; the record as a whole degrades to
// completed_with_errors.
func (r *Record) RecordFailure(selectionID uuid.UUID, result market.SelectionStatus, reason string) {
	r.Failures = append(r.Failures, SelectionFailure{SelectionID: selectionID, Result: result, Reason: reason})
	r.Status = StatusCompletedWithErrors
	r.UpdatedAt = time.Now()
}

// ResetForRetry returns the recorded failures and clears them; the retry
// re-attempts exactly this set. Status is restored to settled and degrades
// again if any retry fails.
func (r *Record) ResetForRetry() []SelectionFailure {
	failed := r.Failures
	r.Failures = nil
	r.Status = StatusSettled
	r.UpdatedAt = time.Now()
	return failed
}
