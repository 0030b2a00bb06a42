// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the betting core.
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

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet. The unique index on (user_id, currency) rejects
// a second wallet for the same pair.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.UserID,
		w.Currency,
		w.Balance,
		w.LockedBalance,
		w.Status,
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewError(shared.KindWalletExists, "wallet already exists for user "+w.UserID.String())
		}
		r.logger.Error("Failed to create wallet", "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.UserID,
		&w.Currency,
		&w.Balance,
		&w.LockedBalance,
		&w.Status,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindWalletNotFound, "wallet "+id.String())
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// GetByUserAndCurrency retrieves the wallet of one (user, currency) pair
func (r *WalletRepository) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	query := `
		SELECT id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, userID, currency).Scan(
		&w.ID,
		&w.UserID,
		&w.Currency,
		&w.Balance,
		&w.LockedBalance,
		&w.Status,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindWalletNotFound, "no wallet for user "+userID.String()+" in "+currency)
		}
		r.logger.Error("Failed to get wallet by user and currency", "user_id", userID.String(), "currency", currency, "error", err)
		return nil, fmt.Errorf("failed to get wallet by user and currency: %w", err)
	}

	return &w, nil
}

// Update writes back a mutated wallet using optimistic locking on version.
func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, locked_balance = $2, status = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query,
		w.Balance,
		w.LockedBalance,
		w.Status,
		w.Version,
		w.UpdatedAt,
		w.ID,
		w.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("concurrent modification of wallet %s", w.ID)
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the wallet row and returns its
// current state. Must be used within a transaction; the lock is held until
// commit, serializing all ledger mutations on this wallet.
func (r *WalletRepository) LockForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	query := `
		SELECT id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at
		FROM wallets
		WHERE user_id = $1 AND currency = $2
		FOR UPDATE
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, userID, currency).Scan(
		&w.ID,
		&w.UserID,
		&w.Currency,
		&w.Balance,
		&w.LockedBalance,
		&w.Status,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NewError(shared.KindWalletNotFound, "no wallet for user "+userID.String()+" in "+currency)
		}
		r.logger.Error("Failed to lock wallet for update", "user_id", userID.String(), "currency", currency, "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return &w, nil
}
