// Package betbook implements the bet lifecycle: placement with odds
// validation and fund capture, reads, cash-out, and the per-bet application
// of selection results driven by the settlement engine.
package betbook

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/config"
	"github.com/sportsbook-betting-core/internal/domain/bet"
	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
	"github.com/sportsbook-betting-core/internal/oracle"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
	"github.com/sportsbook-betting-core/internal/walletledger"
)

// Limits are the placement bounds parsed from configuration.
type Limits struct {
	MinStake        decimal.Decimal
	MaxStake        decimal.Decimal
	MaxPotentialWin decimal.Decimal
	MaxSelections   int
	OddsTolerance   decimal.Decimal
	CashoutMargin   decimal.Decimal
}

// LimitsFromConfig parses the betting parameters into decimals once at
// startup.
func LimitsFromConfig(cfg *config.BettingConfig) (Limits, error) {
	minStake, err := decimal.NewFromString(cfg.MinStake)
	if err != nil {
		return Limits{}, err
	}
	maxStake, err := decimal.NewFromString(cfg.MaxStake)
	if err != nil {
		return Limits{}, err
	}
	maxWin, err := decimal.NewFromString(cfg.MaxPotentialWin)
	if err != nil {
		return Limits{}, err
	}

	return Limits{
		MinStake:        minStake,
		MaxStake:        maxStake,
		MaxPotentialWin: maxWin,
		MaxSelections:   cfg.MaxSelections,
		OddsTolerance:   decimal.NewFromFloat(cfg.OddsTolerance),
		CashoutMargin:   decimal.NewFromFloat(cfg.CashoutMargin),
	}, nil
}

// LegRequest is one requested selection of a bet under placement. The
// expected odds are what the user saw; placement re-validates them against
// the live quote.
type LegRequest struct {
	EventID      uuid.UUID
	MarketID     uuid.UUID
	SelectionID  uuid.UUID
	ExpectedOdds decimal.Decimal
}

// Service is the bet book.
type Service interface {
	PlaceSingle(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, leg LegRequest, correlationID string) (*bet.Bet, error)
	PlaceAccumulator(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, legs []LegRequest, correlationID string) (*bet.Bet, error)

	GetBet(ctx context.Context, id uuid.UUID) (*bet.Bet, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*bet.Bet, int64, error)

	// CashoutValue quotes the current early-exit value of a bet. Zero means
	// cash-out is unavailable.
	CashoutValue(ctx context.Context, betID uuid.UUID) (decimal.Decimal, error)

	// Cashout settles an open bet early at its current cash-out value,
	// crediting the wallet in the same transaction.
	Cashout(ctx context.Context, betID uuid.UUID, correlationID string) (*bet.Bet, error)

	// ApplySelectionResult resolves one leg of one bet and runs the cascade,
	// settling the bet and paying out when it reaches a terminal state.
	// Redeliveries are harmless: resolved legs and settled bets are skipped.
	ApplySelectionResult(ctx context.Context, betID, selectionID uuid.UUID, result market.SelectionStatus, correlationID string) error
}

type betBook struct {
	logger  *slog.Logger
	db      walletledger.TxRunner
	bets    bet.Repository
	markets market.Repository
	odds    market.OddsOracle
	ledger  walletledger.Service
	events  producers.MessagePublisher
	limits  Limits
}

// NewService wires the bet book over its collaborators.
func NewService(
	logger *slog.Logger,
	db walletledger.TxRunner,
	bets bet.Repository,
	markets market.Repository,
	odds market.OddsOracle,
	ledger walletledger.Service,
	events producers.MessagePublisher,
	limits Limits,
) Service {
	return &betBook{
		logger:  logger,
		db:      db,
		bets:    bets,
		markets: markets,
		odds:    odds,
		ledger:  ledger,
		events:  events,
		limits:  limits,
	}
}

// PlaceSingle places a one-leg bet.
func (s *betBook) PlaceSingle(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, leg LegRequest, correlationID string) (*bet.Bet, error) {
	return s.place(ctx, userID, bet.TypeSingle, stake, []LegRequest{leg}, correlationID)
}

// PlaceAccumulator places a multi-leg bet whose legs must reference distinct
// events.
func (s *betBook) PlaceAccumulator(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, legs []LegRequest, correlationID string) (*bet.Bet, error) {
	if len(legs) < 2 {
		return nil, shared.NewError(shared.KindInvalidStake, "accumulator requires at least 2 selections")
	}
	return s.place(ctx, userID, bet.TypeAccumulator, stake, legs, correlationID)
}

// place runs the placement saga: validate, lock funds, capture them, persist
// the bet. Each step that fails compensates the previous one, so no funds
// stay captured without a bet row existing.
func (s *betBook) place(ctx context.Context, userID uuid.UUID, betType bet.Type, stake decimal.Decimal, legs []LegRequest, correlationID string) (*bet.Bet, error) {
	if err := s.validateStake(stake); err != nil {
		return nil, err
	}
	if len(legs) > s.limits.MaxSelections {
		return nil, shared.NewError(shared.KindMaxSelectionsExceeded, "too many selections")
	}

	betLegs, err := s.validateLegs(ctx, legs)
	if err != nil {
		return nil, err
	}

	b := bet.New(userID, betType, stake, uuid.Nil, betLegs)
	if b.PotentialWin.GreaterThan(s.limits.MaxPotentialWin) {
		return nil, shared.NewErrorWithDetails(shared.KindMaxPotentialWinExceeded,
			"potential win exceeds the allowed maximum",
			map[string]string{"potential_win": b.PotentialWin.StringFixed(2), "max": s.limits.MaxPotentialWin.StringFixed(2)})
	}

	// The bet id anchors the fund lock, so a retried placement reuses the
	// same lock instead of reserving twice.
	lock, err := s.ledger.Lock(ctx, userID, stake, b.ID.String(), "bet", correlationID)
	if err != nil {
		return nil, err
	}
	b.LockID = lock.ID

	if err := s.ledger.Debit(ctx, lock.ID, correlationID); err != nil {
		s.compensateLock(ctx, lock.ID, correlationID)
		return nil, err
	}

	if err := s.bets.Create(ctx, b); err != nil {
		s.compensateDebit(ctx, userID, stake, b.ID.String(), correlationID)
		return nil, err
	}

	s.logger.Info("Placed bet",
		"bet_id", b.ID.String(),
		"user_id", userID.String(),
		"type", string(betType),
		"stake", stake.StringFixed(2),
		"total_odds", b.TotalOdds.String(),
	)

	s.publish(ctx, shared.NewEvent(shared.EventBetPlaced, correlationID, shared.BetPlacedPayload{
		BetID:        b.ID,
		UserID:       userID,
		Stake:        stake,
		PotentialWin: b.PotentialWin,
	}), b.ID.String())

	return b, nil
}

func (s *betBook) validateStake(stake decimal.Decimal) error {
	if stake.LessThan(s.limits.MinStake) || stake.GreaterThan(s.limits.MaxStake) {
		return shared.NewErrorWithDetails(shared.KindInvalidStake,
			"stake outside allowed bounds",
			map[string]string{"min": s.limits.MinStake.StringFixed(2), "max": s.limits.MaxStake.StringFixed(2)})
	}
	return nil
}

// validateLegs checks each requested leg against the live market data and
// quotes, and rejects accumulators spanning the same event twice.
func (s *betBook) validateLegs(ctx context.Context, legs []LegRequest) ([]bet.Leg, error) {
	seenEvents := make(map[uuid.UUID]bool, len(legs))
	betLegs := make([]bet.Leg, 0, len(legs))

	for _, leg := range legs {
		if seenEvents[leg.EventID] {
			return nil, shared.NewErrorWithDetails(shared.KindDuplicateEvent,
				"accumulator selections must reference distinct events",
				map[string]string{"event_id": leg.EventID.String()})
		}
		seenEvents[leg.EventID] = true

		sel, err := s.markets.GetSelection(ctx, leg.SelectionID)
		if err != nil {
			return nil, err
		}
		if sel.MarketID != leg.MarketID {
			return nil, shared.NewError(shared.KindSelectionNotFound, "selection does not belong to market "+leg.MarketID.String())
		}
		if sel.Status == market.SelectionSuspended {
			return nil, shared.NewError(shared.KindSelectionSuspended, "selection "+sel.ID.String()+" is suspended")
		}
		if !sel.Pending() {
			return nil, shared.NewError(shared.KindSelectionNotFound, "selection "+sel.ID.String()+" is already resolved")
		}

		quote, err := s.odds.Validate(ctx, leg.SelectionID, leg.ExpectedOdds, s.limits.OddsTolerance)
		if err != nil {
			return nil, err
		}
		if !quote.Valid {
			return nil, oracle.OddsChangedError(leg.SelectionID, quote)
		}

		betLegs = append(betLegs, bet.Leg{
			EventID:         leg.EventID,
			MarketID:        leg.MarketID,
			SelectionID:     leg.SelectionID,
			Side:            sel.Side,
			OddsAtPlacement: quote.CurrentOdds,
		})
	}

	return betLegs, nil
}

// compensateLock releases a lock after a failed placement step. It runs on a
// detached context so a caller timeout cannot strand reserved funds.
func (s *betBook) compensateLock(ctx context.Context, lockID uuid.UUID, correlationID string) {
	detached := context.WithoutCancel(ctx)
	if err := s.ledger.Unlock(detached, lockID, correlationID); err != nil {
		s.logger.Error("Failed to release fund lock after placement failure", "lock_id", lockID.String(), "error", err)
	}
}

// compensateDebit refunds a captured stake when the bet row could not be
// written.
func (s *betBook) compensateDebit(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, betID, correlationID string) {
	detached := context.WithoutCancel(ctx)
	if _, err := s.ledger.Credit(detached, userID, stake, wallet.TransactionTypeBetRefund, betID, "bet", correlationID); err != nil {
		s.logger.Error("Failed to refund stake after placement failure", "bet_id", betID, "error", err)
	}
}

// GetBet retrieves a bet with its selections.
func (s *betBook) GetBet(ctx context.Context, id uuid.UUID) (*bet.Bet, error) {
	return s.bets.GetByID(ctx, id)
}

// ListByUser returns a page of the user's bets, newest first.
func (s *betBook) ListByUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*bet.Bet, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	bets, err := s.bets.GetByUserID(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.bets.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return bets, total, nil
}

// CashoutValue quotes the current early-exit value of a bet.
func (s *betBook) CashoutValue(ctx context.Context, betID uuid.UUID) (decimal.Decimal, error) {
	b, err := s.bets.GetByID(ctx, betID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.CashoutValue(s.limits.CashoutMargin), nil
}

// Cashout settles an open bet early. The bet state change and the wallet
// credit commit atomically; a concurrent settlement loses the race on the
// bet's row lock and finds it no longer open.
func (s *betBook) Cashout(ctx context.Context, betID uuid.UUID, correlationID string) (*bet.Bet, error) {
	var (
		settled *bet.Bet
		value   decimal.Decimal
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		b, err := s.bets.WithTx(tx).LockForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		value = b.CashoutValue(s.limits.CashoutMargin)
		if value.IsZero() {
			return shared.NewError(shared.KindCashoutNotAvailable, "bet "+betID.String()+" cannot be cashed out")
		}

		if err := b.MarkCashedOut(value); err != nil {
			return err
		}
		if err := s.bets.WithTx(tx).Update(ctx, b); err != nil {
			return err
		}

		if _, err := s.ledger.CreditTx(ctx, tx, b.UserID, value, wallet.TransactionTypeBetWin, b.ID.String(), "cashout", correlationID); err != nil {
			return err
		}

		settled = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, shared.NewEvent(shared.EventBetCashedOut, correlationID, shared.BetCashedOutPayload{
		BetID:         settled.ID,
		UserID:        settled.UserID,
		CashoutAmount: value,
	}), settled.ID.String())

	return settled, nil
}

// ApplySelectionResult resolves one leg and cascades. Called once per
// (bet, selection) pair by the settlement engine's fan-out.
func (s *betBook) ApplySelectionResult(ctx context.Context, betID, selectionID uuid.UUID, result market.SelectionStatus, correlationID string) error {
	legStatus, ok := bet.MapSelectionResult(result)
	if !ok {
		return shared.NewError(shared.KindSelectionNotFound, "result "+string(result)+" is not a settlement outcome")
	}

	var (
		settledBet    *bet.Bet
		settledAmount decimal.Decimal
	)

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		b, err := s.bets.WithTx(tx).LockForUpdate(ctx, betID)
		if err != nil {
			return err
		}

		// Cashed-out and settled bets no longer take part in settlement.
		if b.Status != bet.StatusOpen {
			return nil
		}

		if !b.ResolveSelection(selectionID, legStatus) {
			return nil // Leg missing or already resolved; redelivery
		}
		if err := s.bets.WithTx(tx).UpdateSelection(ctx, b.SelectionByID(selectionID)); err != nil {
			return err
		}

		outcome := b.Cascade()
		if !outcome.Settle {
			return nil
		}

		if err := b.MarkSettled(outcome.Status, outcome.Amount); err != nil {
			return err
		}
		if err := s.bets.WithTx(tx).Update(ctx, b); err != nil {
			return err
		}

		if outcome.Amount.GreaterThan(decimal.Zero) {
			txType := wallet.TransactionTypeBetWin
			if outcome.Status == bet.StatusVoid {
				txType = wallet.TransactionTypeBetRefund
			}
			if _, err := s.ledger.CreditTx(ctx, tx, b.UserID, outcome.Amount, txType, b.ID.String(), "bet", correlationID); err != nil {
				return err
			}
		}

		settledBet = b
		settledAmount = outcome.Amount
		return nil
	})
	if err != nil {
		return err
	}

	if settledBet != nil {
		s.logger.Info("Settled bet",
			"bet_id", settledBet.ID.String(),
			"status", string(settledBet.Status),
			"settled_amount", settledAmount.StringFixed(2),
		)
		s.publish(ctx, shared.NewEvent(shared.EventBetSettled, correlationID, shared.BetSettledPayload{
			BetID:         settledBet.ID,
			UserID:        settledBet.UserID,
			Result:        string(settledBet.Status),
			SettledAmount: settledAmount,
		}), settledBet.ID.String())
	}

	return nil
}

func (s *betBook) publish(ctx context.Context, event *shared.Event, key string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, event); err != nil {
		s.logger.Error("Failed to publish bet event", "type", string(event.Type), "key", key, "error", err)
	}
}
