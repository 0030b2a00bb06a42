package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository reads event/market/selection data for settlement input and
// writes back resolution status. The collaborator owning this data keeps
// everything else about it.
type Repository interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*Event, error)
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status EventStatus) error

	GetMarket(ctx context.Context, marketID uuid.UUID) (*Market, error)
	GetMarketsByEvent(ctx context.Context, eventID uuid.UUID) ([]*Market, error)
	UpdateMarketStatus(ctx context.Context, marketID uuid.UUID, status Status) error

	GetSelection(ctx context.Context, selectionID uuid.UUID) (*Selection, error)
	GetSelectionsByMarket(ctx context.Context, marketID uuid.UUID) ([]*Selection, error)
	UpdateSelection(ctx context.Context, sel *Selection) error

	WithTx(tx pgx.Tx) Repository
}
