package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sportsbook-betting-core/internal/domain/bet"
	"github.com/sportsbook-betting-core/internal/platform/persistence"
)

// BetRepository implements the bet.Repository interface for PostgreSQL.
// A bet row and its bet_selections rows form one aggregate; loads always
// return the bet with its selections attached.
type BetRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBetRepository creates a new PostgreSQL bet repository
func NewBetRepository(logger *slog.Logger, db *persistence.PostgresDB) bet.Repository {
	return &BetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BetRepository) WithTx(tx pgx.Tx) bet.Repository {
	return &BetRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a bet together with all its selections
func (r *BetRepository) Create(ctx context.Context, b *bet.Bet) error {
	betQuery := `
		INSERT INTO bets (id, user_id, type, stake, total_odds, potential_win, status, lock_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, betQuery,
		b.ID,
		b.UserID,
		b.Type,
		b.Stake,
		b.TotalOdds,
		b.PotentialWin,
		b.Status,
		b.LockID,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bet", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to create bet: %w", err)
	}

	selQuery := `
		INSERT INTO bet_selections (id, bet_id, event_id, market_id, selection_id, side, odds_at_placement, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, sel := range b.Selections {
		_, err := r.querier.Exec(ctx, selQuery,
			sel.ID,
			sel.BetID,
			sel.EventID,
			sel.MarketID,
			sel.SelectionID,
			sel.Side,
			sel.OddsAtPlacement,
			sel.Status,
		)
		if err != nil {
			r.logger.Error("Failed to create bet selection", "bet_id", b.ID.String(), "selection_id", sel.SelectionID.String(), "error", err)
			return fmt.Errorf("failed to create bet selection: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a bet with its selections
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*bet.Bet, error) {
	return r.getBet(ctx, id, false)
}

// LockForUpdate obtains a pessimistic lock on the bet row and returns the bet
// with its selections. Must be used within a transaction; concurrent
// settlements of different legs of the same bet serialize here.
func (r *BetRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*bet.Bet, error) {
	return r.getBet(ctx, id, true)
}

func (r *BetRepository) getBet(ctx context.Context, id uuid.UUID, forUpdate bool) (*bet.Bet, error) {
	query := `
		SELECT id, user_id, type, stake, total_odds, potential_win, status, settled_amount, cashout_amount, lock_id, version, settled_at, created_at, updated_at
		FROM bets
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var b bet.Bet
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.UserID,
		&b.Type,
		&b.Stake,
		&b.TotalOdds,
		&b.PotentialWin,
		&b.Status,
		&b.SettledAmount,
		&b.CashoutAmount,
		&b.LockID,
		&b.Version,
		&b.SettledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bet.NotFound(id)
		}
		r.logger.Error("Failed to get bet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	selections, err := r.getSelections(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Selections = selections

	return &b, nil
}

func (r *BetRepository) getSelections(ctx context.Context, betID uuid.UUID) ([]*bet.Selection, error) {
	query := `
		SELECT id, bet_id, event_id, market_id, selection_id, side, odds_at_placement, status, resolved_at
		FROM bet_selections
		WHERE bet_id = $1
		ORDER BY id
	`

	rows, err := r.querier.Query(ctx, query, betID)
	if err != nil {
		r.logger.Error("Failed to get bet selections", "bet_id", betID.String(), "error", err)
		return nil, fmt.Errorf("failed to get bet selections: %w", err)
	}
	defer rows.Close()

	var selections []*bet.Selection
	for rows.Next() {
		var sel bet.Selection
		err := rows.Scan(
			&sel.ID,
			&sel.BetID,
			&sel.EventID,
			&sel.MarketID,
			&sel.SelectionID,
			&sel.Side,
			&sel.OddsAtPlacement,
			&sel.Status,
			&sel.ResolvedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan bet selection", "error", err)
			return nil, fmt.Errorf("failed to scan bet selection: %w", err)
		}
		selections = append(selections, &sel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bet selections: %w", err)
	}

	return selections, nil
}

// GetByUserID retrieves a page of a user's bets, newest first
func (r *BetRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*bet.Bet, error) {
	query := `
		SELECT id, user_id, type, stake, total_odds, potential_win, status, settled_amount, cashout_amount, lock_id, version, settled_at, created_at, updated_at
		FROM bets
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get bets by user", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get bets by user: %w", err)
	}
	defer rows.Close()

	var bets []*bet.Bet
	for rows.Next() {
		var b bet.Bet
		err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.Type,
			&b.Stake,
			&b.TotalOdds,
			&b.PotentialWin,
			&b.Status,
			&b.SettledAmount,
			&b.CashoutAmount,
			&b.LockID,
			&b.Version,
			&b.SettledAt,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan bet", "error", err)
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bets: %w", err)
	}

	for _, b := range bets {
		selections, err := r.getSelections(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		b.Selections = selections
	}

	return bets, nil
}

// CountByUserID returns the total number of a user's bets for pagination
func (r *BetRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM bets WHERE user_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.logger.Error("Failed to count bets by user", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to count bets by user: %w", err)
	}

	return count, nil
}

// GetOpenBetIDsBySelection returns the ids of open bets holding a pending leg
// on the given market selection. This is the fan-out set of one selection
// settlement.
func (r *BetRepository) GetOpenBetIDsBySelection(ctx context.Context, selectionID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT b.id
		FROM bets b
		JOIN bet_selections bs ON bs.bet_id = b.id
		WHERE bs.selection_id = $1 AND bs.status = $2 AND b.status = $3
	`

	rows, err := r.querier.Query(ctx, query, selectionID, bet.SelectionPending, bet.StatusOpen)
	if err != nil {
		r.logger.Error("Failed to get open bets by selection", "selection_id", selectionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get open bets by selection: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bet id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bet ids: %w", err)
	}

	return ids, nil
}

// Update writes back the bet row using optimistic locking on version.
// Selections are updated separately via UpdateSelection.
func (r *BetRepository) Update(ctx context.Context, b *bet.Bet) error {
	query := `
		UPDATE bets
		SET status = $1, settled_amount = $2, cashout_amount = $3, version = $4, settled_at = $5, updated_at = $6
		WHERE id = $7 AND version = $8
	`

	result, err := r.querier.Exec(ctx, query,
		b.Status,
		b.SettledAmount,
		b.CashoutAmount,
		b.Version,
		b.SettledAt,
		b.UpdatedAt,
		b.ID,
		b.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update bet", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to update bet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("concurrent modification of bet %s", b.ID)
	}

	return nil
}

// UpdateSelection writes back one resolved bet leg
func (r *BetRepository) UpdateSelection(ctx context.Context, sel *bet.Selection) error {
	query := `
		UPDATE bet_selections
		SET status = $1, resolved_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, sel.Status, sel.ResolvedAt, sel.ID)
	if err != nil {
		r.logger.Error("Failed to update bet selection", "id", sel.ID.String(), "error", err)
		return fmt.Errorf("failed to update bet selection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("bet selection %s not found", sel.ID)
	}

	return nil
}
