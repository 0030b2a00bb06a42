// Package oracle implements the odds oracle on top of the odds feed's Redis
// cache, falling back to the market store when a quote is not cached.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/shared"
)

const (
	oddsKeyPrefix = "odds:"
	oddsCacheTTL  = 30 * time.Second
)

// cachedQuote is the JSON document the odds feed writes per selection.
type cachedQuote struct {
	Odds   string `json:"odds"`
	Status string `json:"status"`
}

// RedisOracle reads live quotes from the feed's Redis cache, backfilling from
// the market store on a miss.
type RedisOracle struct {
	client  *redis.Client
	markets market.Repository
	logger  *slog.Logger
}

// NewRedisOracle creates an odds oracle backed by Redis with a market store
// fallback.
func NewRedisOracle(logger *slog.Logger, client *redis.Client, markets market.Repository) market.OddsOracle {
	return &RedisOracle{
		client:  client,
		markets: markets,
		logger:  logger,
	}
}

// GetOdds returns the current quote for a selection. A cache miss falls back
// to the market store and repopulates the cache.
func (o *RedisOracle) GetOdds(ctx context.Context, selectionID uuid.UUID) (market.OddsInfo, error) {
	key := oddsKeyPrefix + selectionID.String()

	raw, err := o.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedQuote
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			odds, decErr := decimal.NewFromString(cached.Odds)
			if decErr == nil {
				return market.OddsInfo{Odds: odds, Status: market.SelectionStatus(cached.Status)}, nil
			}
		}
		// Corrupt cache entry; fall through to the store
		o.logger.Warn("Discarding malformed cached quote", "selection_id", selectionID.String())
	} else if !errors.Is(err, redis.Nil) {
		o.logger.Error("Failed to read quote from cache", "selection_id", selectionID.String(), "error", err)
		return market.OddsInfo{}, fmt.Errorf("failed to read quote from cache: %w", err)
	}

	sel, err := o.markets.GetSelection(ctx, selectionID)
	if err != nil {
		return market.OddsInfo{}, err
	}

	o.backfill(ctx, key, sel)

	return market.OddsInfo{Odds: sel.Odds, Status: sel.Status}, nil
}

func (o *RedisOracle) backfill(ctx context.Context, key string, sel *market.Selection) {
	payload, err := json.Marshal(cachedQuote{Odds: sel.Odds.String(), Status: string(sel.Status)})
	if err != nil {
		return
	}
	if err := o.client.Set(ctx, key, payload, oddsCacheTTL).Err(); err != nil {
		// Cache backfill is best effort
		o.logger.Warn("Failed to backfill quote cache", "selection_id", sel.ID.String(), "error", err)
	}
}

// Validate checks the caller's expected odds against the current quote.
func (o *RedisOracle) Validate(ctx context.Context, selectionID uuid.UUID, expectedOdds, tolerance decimal.Decimal) (market.Quote, error) {
	info, err := o.GetOdds(ctx, selectionID)
	if err != nil {
		return market.Quote{}, err
	}

	return ValidateQuote(info, expectedOdds, tolerance), nil
}

// ValidateQuote applies the staleness-tolerance rule to a quote. Suspended or
// already-resolved selections always fail; a relative drift above tolerance
// fails with the current odds attached so the caller can re-quote.
func ValidateQuote(info market.OddsInfo, expectedOdds, tolerance decimal.Decimal) market.Quote {
	if info.Status != market.SelectionActive {
		return market.Quote{
			Valid:       false,
			CurrentOdds: info.Odds,
			Reason:      "Selection is " + string(info.Status),
		}
	}

	if info.Odds.IsZero() {
		return market.Quote{
			Valid:       false,
			CurrentOdds: info.Odds,
			Reason:      "No odds quoted",
		}
	}

	drift := expectedOdds.Sub(info.Odds).Abs().Div(info.Odds)
	if drift.GreaterThan(tolerance) {
		return market.Quote{
			Valid:       false,
			CurrentOdds: info.Odds,
			Reason:      fmt.Sprintf("Odds have changed by %s%%", drift.Mul(decimal.NewFromInt(100)).Round(2).String()),
		}
	}

	return market.Quote{Valid: true, CurrentOdds: info.Odds}
}

// OddsChangedError builds the retryable ODDS_CHANGED error carrying the
// current quote.
func OddsChangedError(selectionID uuid.UUID, quote market.Quote) error {
	return shared.NewErrorWithDetails(shared.KindOddsChanged, quote.Reason, map[string]string{
		"selection_id": selectionID.String(),
		"current_odds": quote.CurrentOdds.String(),
	})
}
