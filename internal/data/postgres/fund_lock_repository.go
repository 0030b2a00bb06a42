package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
	"github.com/sportsbook-betting-core/internal/platform/persistence"
)

// FundLockRepository implements the wallet.LockRepository interface for PostgreSQL
type FundLockRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewFundLockRepository creates a new PostgreSQL fund lock repository
func NewFundLockRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.LockRepository {
	return &FundLockRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *FundLockRepository) WithTx(tx pgx.Tx) wallet.LockRepository {
	return &FundLockRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new fund lock. A partial unique index on
// (wallet_id, reference_id, reference_type) WHERE status = 'active' rejects a
// second active lock for the same reference.
func (r *FundLockRepository) Create(ctx context.Context, l *wallet.FundLock) error {
	query := `
		INSERT INTO fund_locks (id, wallet_id, amount, reference_id, reference_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		l.ID,
		l.WalletID,
		l.Amount,
		l.ReferenceID,
		l.ReferenceType,
		l.Status,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create fund lock", "wallet_id", l.WalletID.String(), "error", err)
		return fmt.Errorf("failed to create fund lock: %w", err)
	}

	return nil
}

// GetByID retrieves a fund lock by its ID
func (r *FundLockRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.FundLock, error) {
	query := `
		SELECT id, wallet_id, amount, reference_id, reference_type, status, created_at, updated_at
		FROM fund_locks
		WHERE id = $1
	`

	var l wallet.FundLock
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.WalletID,
		&l.Amount,
		&l.ReferenceID,
		&l.ReferenceType,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindLockNotFound, "lock "+id.String())
		}
		r.logger.Error("Failed to get fund lock", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get fund lock: %w", err)
	}

	return &l, nil
}

// GetActiveByReference finds the active lock anchored to a reference.
// Returns nil, nil when none exists; lock requests use this for idempotency.
func (r *FundLockRepository) GetActiveByReference(ctx context.Context, walletID uuid.UUID, referenceID, referenceType string) (*wallet.FundLock, error) {
	query := `
		SELECT id, wallet_id, amount, reference_id, reference_type, status, created_at, updated_at
		FROM fund_locks
		WHERE wallet_id = $1 AND reference_id = $2 AND reference_type = $3 AND status = $4
	`

	var l wallet.FundLock
	err := r.querier.QueryRow(ctx, query, walletID, referenceID, referenceType, wallet.LockStatusActive).Scan(
		&l.ID,
		&l.WalletID,
		&l.Amount,
		&l.ReferenceID,
		&l.ReferenceType,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No active lock for this reference
		}
		r.logger.Error("Failed to get fund lock by reference", "wallet_id", walletID.String(), "reference_id", referenceID, "error", err)
		return nil, fmt.Errorf("failed to get fund lock by reference: %w", err)
	}

	return &l, nil
}

// Update writes back a lock's status transition
func (r *FundLockRepository) Update(ctx context.Context, l *wallet.FundLock) error {
	query := `
		UPDATE fund_locks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, l.Status, l.UpdatedAt, l.ID)
	if err != nil {
		r.logger.Error("Failed to update fund lock", "id", l.ID.String(), "error", err)
		return fmt.Errorf("failed to update fund lock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NewError(shared.KindLockNotFound, "lock "+l.ID.String())
	}

	return nil
}
