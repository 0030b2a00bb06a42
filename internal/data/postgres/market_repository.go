package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/platform/persistence"
)

// MarketRepository implements the market.Repository interface for PostgreSQL
type MarketRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMarketRepository creates a new PostgreSQL market repository
func NewMarketRepository(logger *slog.Logger, db *persistence.PostgresDB) market.Repository {
	return &MarketRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *MarketRepository) WithTx(tx pgx.Tx) market.Repository {
	return &MarketRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetEvent retrieves an event by its ID
func (r *MarketRepository) GetEvent(ctx context.Context, eventID uuid.UUID) (*market.Event, error) {
	query := `
		SELECT id, name, home_team, away_team, status, starts_at, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	var e market.Event
	err := r.querier.QueryRow(ctx, query, eventID).Scan(
		&e.ID,
		&e.Name,
		&e.HomeTeam,
		&e.AwayTeam,
		&e.Status,
		&e.StartsAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindEventNotFound, "event "+eventID.String())
		}
		r.logger.Error("Failed to get event", "id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return &e, nil
}

// UpdateEventStatus moves an event through its lifecycle
func (r *MarketRepository) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status market.EventStatus) error {
	query := `
		UPDATE events
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), eventID)
	if err != nil {
		r.logger.Error("Failed to update event status", "id", eventID.String(), "error", err)
		return fmt.Errorf("failed to update event status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NewError(shared.KindEventNotFound, "event "+eventID.String())
	}

	return nil
}

// GetMarket retrieves a market by its ID
func (r *MarketRepository) GetMarket(ctx context.Context, marketID uuid.UUID) (*market.Market, error) {
	query := `
		SELECT id, event_id, type, name, line, home_spread, away_spread, status, created_at, updated_at
		FROM markets
		WHERE id = $1
	`

	var m market.Market
	err := r.querier.QueryRow(ctx, query, marketID).Scan(
		&m.ID,
		&m.EventID,
		&m.Type,
		&m.Name,
		&m.Line,
		&m.HomeSpread,
		&m.AwaySpread,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindMarketNotFound, "market "+marketID.String())
		}
		r.logger.Error("Failed to get market", "id", marketID.String(), "error", err)
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	return &m, nil
}

// GetMarketsByEvent retrieves every market hanging off an event
func (r *MarketRepository) GetMarketsByEvent(ctx context.Context, eventID uuid.UUID) ([]*market.Market, error) {
	query := `
		SELECT id, event_id, type, name, line, home_spread, away_spread, status, created_at, updated_at
		FROM markets
		WHERE event_id = $1
		ORDER BY created_at
	`

	rows, err := r.querier.Query(ctx, query, eventID)
	if err != nil {
		r.logger.Error("Failed to get markets by event", "event_id", eventID.String(), "error", err)
		return nil, fmt.Errorf("failed to get markets by event: %w", err)
	}
	defer rows.Close()

	var markets []*market.Market
	for rows.Next() {
		var m market.Market
		err := rows.Scan(
			&m.ID,
			&m.EventID,
			&m.Type,
			&m.Name,
			&m.Line,
			&m.HomeSpread,
			&m.AwaySpread,
			&m.Status,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan market", "error", err)
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over markets: %w", err)
	}

	return markets, nil
}

// UpdateMarketStatus moves a market through its lifecycle
func (r *MarketRepository) UpdateMarketStatus(ctx context.Context, marketID uuid.UUID, status market.Status) error {
	query := `
		UPDATE markets
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), marketID)
	if err != nil {
		r.logger.Error("Failed to update market status", "id", marketID.String(), "error", err)
		return fmt.Errorf("failed to update market status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NewError(shared.KindMarketNotFound, "market "+marketID.String())
	}

	return nil
}

// GetSelection retrieves a market selection by its ID
func (r *MarketRepository) GetSelection(ctx context.Context, selectionID uuid.UUID) (*market.Selection, error) {
	query := `
		SELECT id, market_id, name, side, odds, status, resolved_at, created_at, updated_at
		FROM selections
		WHERE id = $1
	`

	var s market.Selection
	err := r.querier.QueryRow(ctx, query, selectionID).Scan(
		&s.ID,
		&s.MarketID,
		&s.Name,
		&s.Side,
		&s.Odds,
		&s.Status,
		&s.ResolvedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindSelectionNotFound, "selection "+selectionID.String())
		}
		r.logger.Error("Failed to get selection", "id", selectionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}

	return &s, nil
}

// GetSelectionsByMarket retrieves every selection of a market
func (r *MarketRepository) GetSelectionsByMarket(ctx context.Context, marketID uuid.UUID) ([]*market.Selection, error) {
	query := `
		SELECT id, market_id, name, side, odds, status, resolved_at, created_at, updated_at
		FROM selections
		WHERE market_id = $1
		ORDER BY created_at
	`

	rows, err := r.querier.Query(ctx, query, marketID)
	if err != nil {
		r.logger.Error("Failed to get selections by market", "market_id", marketID.String(), "error", err)
		return nil, fmt.Errorf("failed to get selections by market: %w", err)
	}
	defer rows.Close()

	var selections []*market.Selection
	for rows.Next() {
		var s market.Selection
		err := rows.Scan(
			&s.ID,
			&s.MarketID,
			&s.Name,
			&s.Side,
			&s.Odds,
			&s.Status,
			&s.ResolvedAt,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan selection", "error", err)
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over selections: %w", err)
	}

	return selections, nil
}

// UpdateSelection writes back a selection's resolution
func (r *MarketRepository) UpdateSelection(ctx context.Context, sel *market.Selection) error {
	query := `
		UPDATE selections
		SET odds = $1, status = $2, resolved_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, sel.Odds, sel.Status, sel.ResolvedAt, sel.UpdatedAt, sel.ID)
	if err != nil {
		r.logger.Error("Failed to update selection", "id", sel.ID.String(), "error", err)
		return fmt.Errorf("failed to update selection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NewError(shared.KindSelectionNotFound, "selection "+sel.ID.String())
	}

	return nil
}
