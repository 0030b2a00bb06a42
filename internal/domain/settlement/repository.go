package settlement

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages settlement record persistence in the document store.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByMarketID(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*Record, error)
}
