package bet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sportsbook-betting-core/internal/domain/shared"
)

// Repository defines bet persistence. A bet and its selections are created
// atomically; every mutation of one bet serializes on its row lock, because
// legs of the same accumulator can resolve concurrently from different
// market settlements.
type Repository interface {
	Create(ctx context.Context, b *Bet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Bet, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// GetOpenBetIDsBySelection returns the ids of open bets with a pending
	// leg on the given market selection, the fan-out set of a selection
	// settlement.
	GetOpenBetIDsBySelection(ctx context.Context, selectionID uuid.UUID) ([]uuid.UUID, error)

	// LockForUpdate acquires a pessimistic row lock on the bet and loads it
	// with its selections.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Bet, error)
	Update(ctx context.Context, b *Bet) error
	UpdateSelection(ctx context.Context, sel *Selection) error

	WithTx(tx pgx.Tx) Repository
}

// NotFound builds the BET_NOT_FOUND error for the given id.
func NotFound(id uuid.UUID) error {
	return shared.NewError(shared.KindBetNotFound, "bet "+id.String())
}
