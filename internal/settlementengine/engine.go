// Package settlementengine resolves markets and events: it derives or accepts
// per-selection results, writes them back to the market store, fans each one
// out to the open bets riding on it, and keeps a durable settlement record of
// what was applied and what failed. Partial failures never roll back the
// selections that settled; the record's retry operation re-drives them.
package settlementengine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sportsbook-betting-core/internal/betbook"
	"github.com/sportsbook-betting-core/internal/domain/bet"
	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/settlement"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
)

// Engine settles markets and events. All operations tolerate redelivery:
// settling an already-settled market is a no-op, and re-applying a selection
// result skips the bets that already left open.
type Engine interface {
	// SettleMarket applies an explicit list of selection results to one
	// market.
	SettleMarket(ctx context.Context, marketID uuid.UUID, results []shared.SelectionResultInput, correlationID string) (*settlement.Record, error)

	// SettleEvent derives results for every open market of the event from the
	// final score and settles them all. Markets that fail derivation are
	// skipped and reported in their own record; the rest still settle.
	SettleEvent(ctx context.Context, eventID uuid.UUID, score market.Score, correlationID string) ([]*settlement.Record, error)

	// VoidMarket voids every selection of a market, refunding the affected
	// stakes through the usual cascade.
	VoidMarket(ctx context.Context, marketID uuid.UUID, reason, correlationID string) (*settlement.Record, error)

	// Retry re-applies the failed selections of a completed_with_errors
	// settlement record.
	Retry(ctx context.Context, settlementID uuid.UUID, correlationID string) (*settlement.Record, error)

	GetSettlement(ctx context.Context, settlementID uuid.UUID) (*settlement.Record, error)
	ListByMarket(ctx context.Context, marketID uuid.UUID, page, perPage int) ([]*settlement.Record, error)
}

type engine struct {
	logger  *slog.Logger
	markets market.Repository
	bets    bet.Repository
	book    betbook.Service
	records settlement.Repository
	events  producers.MessagePublisher
}

// New wires the engine over the market store, the bet book and the settlement
// record store.
func New(
	logger *slog.Logger,
	markets market.Repository,
	bets bet.Repository,
	book betbook.Service,
	records settlement.Repository,
	events producers.MessagePublisher,
) Engine {
	return &engine{
		logger:  logger,
		markets: markets,
		bets:    bets,
		book:    book,
		records: records,
		events:  events,
	}
}

// parseResult maps the wire-level result string onto the selection result
// vocabulary.
func parseResult(raw string) (market.SelectionStatus, error) {
	switch status := market.SelectionStatus(raw); status {
	case market.SelectionWinner, market.SelectionLoser, market.SelectionVoid, market.SelectionPush:
		return status, nil
	}
	return "", fmt.Errorf("%q is not a settlement result", raw)
}

func (e *engine) SettleMarket(ctx context.Context, marketID uuid.UUID, results []shared.SelectionResultInput, correlationID string) (*settlement.Record, error) {
	m, err := e.markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if settled := e.alreadySettled(m, correlationID); settled {
		return nil, nil
	}

	parsed := make([]market.SelectionResult, 0, len(results))
	for _, in := range results {
		result, err := parseResult(in.Result)
		if err != nil {
			return nil, shared.NewErrorWithDetails(shared.KindSelectionNotFound, err.Error(),
				map[string]string{"selection_id": in.SelectionID.String()})
		}
		parsed = append(parsed, market.SelectionResult{SelectionID: in.SelectionID, Result: result})
	}

	record := settlement.NewRecord(settlement.KindMarket, m.ID, nil)
	e.applyResults(ctx, record, parsed, correlationID)
	return record, e.finishMarket(ctx, record, m.ID, correlationID)
}

func (e *engine) SettleEvent(ctx context.Context, eventID uuid.UUID, score market.Score, correlationID string) ([]*settlement.Record, error) {
	event, err := e.markets.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	marketList, err := e.markets.GetMarketsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	records := make([]*settlement.Record, 0, len(marketList))
	for _, m := range marketList {
		if e.alreadySettled(m, correlationID) {
			continue
		}

		record := settlement.NewRecord(settlement.KindEvent, m.ID, &event.ID)
		record.Score = &score

		selections, err := e.markets.GetSelectionsByMarket(ctx, m.ID)
		if err != nil {
			return records, err
		}

		derived, err := market.DeriveResults(m, selections, score)
		if err != nil {
			// One undeliverable market must not block the rest of the event.
			e.logger.Error("Failed to derive market results", "market_id", m.ID.String(), "error", err)
			for _, sel := range selections {
				record.RecordFailure(sel.ID, "", err.Error())
			}
			if err := e.finishMarket(ctx, record, m.ID, correlationID); err != nil {
				return records, err
			}
			records = append(records, record)
			continue
		}

		e.applyResults(ctx, record, derived, correlationID)
		if err := e.finishMarket(ctx, record, m.ID, correlationID); err != nil {
			return records, err
		}
		records = append(records, record)
	}

	if err := e.markets.UpdateEventStatus(ctx, eventID, market.EventFinished); err != nil {
		return records, err
	}

	e.logger.Info("Settled event",
		"event_id", eventID.String(),
		"home_score", score.Home,
		"away_score", score.Away,
		"markets", len(records),
	)
	return records, nil
}

func (e *engine) VoidMarket(ctx context.Context, marketID uuid.UUID, reason, correlationID string) (*settlement.Record, error) {
	m, err := e.markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if settled := e.alreadySettled(m, correlationID); settled {
		return nil, nil
	}

	selections, err := e.markets.GetSelectionsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	record := settlement.NewRecord(settlement.KindVoid, m.ID, nil)
	record.VoidReason = reason

	voided := make([]market.SelectionResult, 0, len(selections))
	for _, sel := range selections {
		voided = append(voided, market.SelectionResult{SelectionID: sel.ID, Result: market.SelectionVoid})
	}
	e.applyResults(ctx, record, voided, correlationID)

	if err := e.records.Save(ctx, record); err != nil {
		return nil, err
	}
	if err := e.markets.UpdateMarketStatus(ctx, marketID, market.StatusVoided); err != nil {
		return nil, err
	}
	e.publishMarketStatus(ctx, marketID, market.StatusVoided, correlationID)

	e.logger.Info("Voided market", "market_id", marketID.String(), "reason", reason)
	return record, nil
}

func (e *engine) Retry(ctx context.Context, settlementID uuid.UUID, correlationID string) (*settlement.Record, error) {
	record, err := e.records.GetByID(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	failed := record.ResetForRetry()
	if len(failed) == 0 {
		return record, nil
	}

	results := make([]market.SelectionResult, 0, len(failed))
	var underived []settlement.SelectionFailure
	for _, f := range failed {
		if f.Result == "" {
			// Recorded before derivation produced a result; replaying it
			// would fail the same way. Re-derive from the market rules.
			underived = append(underived, f)
			continue
		}
		results = append(results, market.SelectionResult{SelectionID: f.SelectionID, Result: f.Result})
	}

	if len(underived) > 0 {
		derived, err := e.rederive(ctx, record, underived)
		if err != nil {
			e.logger.Error("Failed to re-derive results for retry",
				"settlement_id", record.ID.String(),
				"market_id", record.MarketID.String(),
				"error", err,
			)
			for _, f := range underived {
				record.RecordFailure(f.SelectionID, "", err.Error())
			}
		} else {
			results = append(results, derived...)
		}
	}

	e.applyResults(ctx, record, results, correlationID)

	return record, e.finishMarket(ctx, record, record.MarketID, correlationID)
}

// rederive recomputes selection results from the market rules for failures
// that never got a derived result. Only event settlements carry the score
// this needs.
func (e *engine) rederive(ctx context.Context, record *settlement.Record, failed []settlement.SelectionFailure) ([]market.SelectionResult, error) {
	if record.Score == nil {
		return nil, fmt.Errorf("settlement %s carries no score to derive from", record.ID)
	}

	m, err := e.markets.GetMarket(ctx, record.MarketID)
	if err != nil {
		return nil, err
	}
	selections, err := e.markets.GetSelectionsByMarket(ctx, record.MarketID)
	if err != nil {
		return nil, err
	}
	derived, err := market.DeriveResults(m, selections, *record.Score)
	if err != nil {
		return nil, err
	}

	wanted := make(map[uuid.UUID]bool, len(failed))
	for _, f := range failed {
		wanted[f.SelectionID] = true
	}
	results := make([]market.SelectionResult, 0, len(failed))
	for _, r := range derived {
		if wanted[r.SelectionID] {
			results = append(results, r)
		}
	}
	return results, nil
}

func (e *engine) GetSettlement(ctx context.Context, settlementID uuid.UUID) (*settlement.Record, error) {
	return e.records.GetByID(ctx, settlementID)
}

func (e *engine) ListByMarket(ctx context.Context, marketID uuid.UUID, page, perPage int) ([]*settlement.Record, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return e.records.GetByMarketID(ctx, marketID, perPage, (page-1)*perPage)
}

// alreadySettled short-circuits redelivered settlements of a terminal market.
func (e *engine) alreadySettled(m *market.Market, correlationID string) bool {
	if m.Status != market.StatusSettled && m.Status != market.StatusVoided {
		return false
	}
	e.logger.Info("Market already settled, skipping",
		"market_id", m.ID.String(),
		"status", string(m.Status),
		"correlation_id", correlationID,
	)
	return true
}

// applyResults resolves each selection in the market store and fans the
// result out to the open bets riding on it. Failures are recorded per
// selection and never abort the remaining ones.
func (e *engine) applyResults(ctx context.Context, record *settlement.Record, results []market.SelectionResult, correlationID string) {
	for _, r := range results {
		if err := e.applyOne(ctx, r, correlationID); err != nil {
			e.logger.Error("Failed to settle selection",
				"selection_id", r.SelectionID.String(),
				"result", string(r.Result),
				"error", err,
			)
			record.RecordFailure(r.SelectionID, r.Result, err.Error())
			continue
		}
		record.RecordOutcome(r.SelectionID, r.Result)
	}
}

// applyOne writes the result to the selection and settles every open bet with
// a pending leg on it. A selection that already carries a result is not
// re-resolved, but its fan-out still runs: a prior attempt may have died
// between the two steps.
func (e *engine) applyOne(ctx context.Context, r market.SelectionResult, correlationID string) error {
	if _, err := parseResult(string(r.Result)); err != nil {
		return err
	}

	sel, err := e.markets.GetSelection(ctx, r.SelectionID)
	if err != nil {
		return err
	}

	if sel.Resolve(r.Result) {
		if err := e.markets.UpdateSelection(ctx, sel); err != nil {
			return err
		}
		e.publish(ctx, shared.NewEvent(shared.EventSelectionSettled, correlationID, shared.SelectionSettledPayload{
			SelectionID: sel.ID,
			MarketID:    sel.MarketID,
			Result:      string(r.Result),
		}), sel.ID.String())
	}

	betIDs, err := e.bets.GetOpenBetIDsBySelection(ctx, sel.ID)
	if err != nil {
		return err
	}
	for _, betID := range betIDs {
		if err := e.book.ApplySelectionResult(ctx, betID, sel.ID, r.Result, correlationID); err != nil {
			return fmt.Errorf("bet %s: %w", betID, err)
		}
	}
	return nil
}

// finishMarket persists the record and moves the market to its final status:
// settled, or completed_with_errors when any selection failed.
func (e *engine) finishMarket(ctx context.Context, record *settlement.Record, marketID uuid.UUID, correlationID string) error {
	if err := e.records.Save(ctx, record); err != nil {
		return err
	}

	status := market.StatusSettled
	if record.Status == settlement.StatusCompletedWithErrors {
		status = market.StatusCompletedWithErrors
	}
	if err := e.markets.UpdateMarketStatus(ctx, marketID, status); err != nil {
		return err
	}
	e.publishMarketStatus(ctx, marketID, status, correlationID)

	e.logger.Info("Settled market",
		"market_id", marketID.String(),
		"settlement_id", record.ID.String(),
		"status", string(status),
		"outcomes", len(record.Outcomes),
		"failures", len(record.Failures),
	)
	return nil
}

func (e *engine) publishMarketStatus(ctx context.Context, marketID uuid.UUID, status market.Status, correlationID string) {
	e.publish(ctx, shared.NewEvent(shared.EventMarketStatusChanged, correlationID, shared.MarketStatusChangedPayload{
		MarketID: marketID,
		Status:   string(status),
	}), marketID.String())
}

func (e *engine) publish(ctx context.Context, event *shared.Event, key string) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, key, event); err != nil {
		e.logger.Error("Failed to publish settlement event", "type", string(event.Type), "key", key, "error", err)
	}
}
