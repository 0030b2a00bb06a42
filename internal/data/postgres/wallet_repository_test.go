package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestWalletRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}

	w := &wallet.Wallet{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Currency:      "USD",
		Balance:       decimal.RequireFromString("100.00"),
		LockedBalance: decimal.Zero,
		Status:        wallet.StatusActive,
		Version:       1,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO wallets \(id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.ID, w.UserID, w.Currency, w.Balance, w.LockedBalance, w.Status, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(w.ID, w.UserID, w.Currency, w.Balance, w.LockedBalance, w.Status, w.Version, w.CreatedAt, w.UpdatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, w)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create wallet")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_GetByUserAndCurrency(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	userID := uuid.New()
	now := time.Now()

	expectedWallet := &wallet.Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      "USD",
		Balance:       decimal.RequireFromString("250.00"),
		LockedBalance: decimal.RequireFromString("25.00"),
		Status:        wallet.StatusActive,
		Version:       3,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		SELECT id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at
		FROM wallets
		WHERE user_id = \$1 AND currency = \$2
	`
	rows := pgxmock.NewRows([]string{"id", "user_id", "currency", "balance", "locked_balance", "status", "version", "created_at", "updated_at"}).
		AddRow(expectedWallet.ID, expectedWallet.UserID, expectedWallet.Currency, expectedWallet.Balance, expectedWallet.LockedBalance, expectedWallet.Status, expectedWallet.Version, expectedWallet.CreatedAt, expectedWallet.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID, "USD").WillReturnRows(rows)

		w, err := repo.GetByUserAndCurrency(ctx, userID, "USD")
		assert.NoError(t, err)
		assert.Equal(t, expectedWallet, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID, "USD").WillReturnError(pgx.ErrNoRows)

		w, err := repo.GetByUserAndCurrency(ctx, userID, "USD")
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.True(t, shared.IsKind(err, shared.KindWalletNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs(userID, "USD").WillReturnError(dbErr)

		w, err := repo.GetByUserAndCurrency(ctx, userID, "USD")
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_Update(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	now := time.Now()
	w := &wallet.Wallet{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Currency:      "USD",
		Balance:       decimal.RequireFromString("75.00"),
		LockedBalance: decimal.RequireFromString("25.00"),
		Status:        wallet.StatusActive,
		Version:       2, // New version after update
		UpdatedAt:     now,
	}
	previousVersion := w.Version - 1

	query := `
		UPDATE wallets
		SET balance = \$1, locked_balance = \$2, status = \$3, version = \$4, updated_at = \$5
		WHERE id = \$6 AND version = \$7
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.LockedBalance, w.Status, w.Version, w.UpdatedAt, w.ID, previousVersion).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, w)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent modification", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(w.Balance, w.LockedBalance, w.Status, w.Version, w.UpdatedAt, w.ID, previousVersion).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0)) // 0 rows affected

		err := repo.Update(ctx, w)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "concurrent modification")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &WalletRepository{querier: mock, logger: logger}
	userID := uuid.New()
	now := time.Now()

	expectedWallet := &wallet.Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      "USD",
		Balance:       decimal.RequireFromString("500.00"),
		LockedBalance: decimal.Zero,
		Status:        wallet.StatusActive,
		Version:       5,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		SELECT id, user_id, currency, balance, locked_balance, status, version, created_at, updated_at
		FROM wallets
		WHERE user_id = \$1 AND currency = \$2
		FOR UPDATE
	`
	rows := pgxmock.NewRows([]string{"id", "user_id", "currency", "balance", "locked_balance", "status", "version", "created_at", "updated_at"}).
		AddRow(expectedWallet.ID, expectedWallet.UserID, expectedWallet.Currency, expectedWallet.Balance, expectedWallet.LockedBalance, expectedWallet.Status, expectedWallet.Version, expectedWallet.CreatedAt, expectedWallet.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID, "USD").WillReturnRows(rows)

		w, err := repo.LockForUpdate(ctx, userID, "USD")
		assert.NoError(t, err)
		assert.Equal(t, expectedWallet, w)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(userID, "USD").WillReturnError(pgx.ErrNoRows)

		w, err := repo.LockForUpdate(ctx, userID, "USD")
		assert.Error(t, err)
		assert.Nil(t, w)
		assert.True(t, shared.IsKind(err, shared.KindWalletNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundLockRepository_GetActiveByReference(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FundLockRepository{querier: mock, logger: logger}
	walletID := uuid.New()
	now := time.Now()

	expectedLock := &wallet.FundLock{
		ID:            uuid.New(),
		WalletID:      walletID,
		Amount:        decimal.RequireFromString("25.00"),
		ReferenceID:   uuid.New().String(),
		ReferenceType: "bet",
		Status:        wallet.LockStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		SELECT id, wallet_id, amount, reference_id, reference_type, status, created_at, updated_at
		FROM fund_locks
		WHERE wallet_id = \$1 AND reference_id = \$2 AND reference_type = \$3 AND status = \$4
	`
	rows := pgxmock.NewRows([]string{"id", "wallet_id", "amount", "reference_id", "reference_type", "status", "created_at", "updated_at"}).
		AddRow(expectedLock.ID, expectedLock.WalletID, expectedLock.Amount, expectedLock.ReferenceID, expectedLock.ReferenceType, expectedLock.Status, expectedLock.CreatedAt, expectedLock.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(walletID, expectedLock.ReferenceID, "bet", wallet.LockStatusActive).
			WillReturnRows(rows)

		l, err := repo.GetActiveByReference(ctx, walletID, expectedLock.ReferenceID, "bet")
		assert.NoError(t, err)
		assert.Equal(t, expectedLock, l)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found returns nil", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(walletID, expectedLock.ReferenceID, "bet", wallet.LockStatusActive).
			WillReturnError(pgx.ErrNoRows)

		l, err := repo.GetActiveByReference(ctx, walletID, expectedLock.ReferenceID, "bet")
		assert.NoError(t, err) // No error, just nil lock
		assert.Nil(t, l)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWalletRepository_WithTx(t *testing.T) {
	logger := newTestLogger()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	originalRepo := &WalletRepository{querier: mockPool, logger: logger}

	mockPool.ExpectBegin()
	pgxTx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)

	txRepo := originalRepo.WithTx(pgxTx)

	assert.NotNil(t, txRepo)
	assert.Equal(t, pgxTx, txRepo.(*WalletRepository).querier, "Querier in new repo should be the transaction")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
