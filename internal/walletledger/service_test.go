package walletledger

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sportsbook-betting-core/internal/domain/outbox"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

// fakeTxRunner runs the transaction function directly; the repositories are
// mocked, so no real transaction is needed.
type fakeTxRunner struct{}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) Create(ctx context.Context, w *wallet.Wallet) error {
	return m.Called(ctx, w).Error(0)
}

func (m *MockWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) Update(ctx context.Context, w *wallet.Wallet) error {
	return m.Called(ctx, w).Error(0)
}

func (m *MockWalletRepo) LockForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) WithTx(tx pgx.Tx) wallet.Repository {
	return m
}

type MockLockRepo struct {
	mock.Mock
}

func (m *MockLockRepo) Create(ctx context.Context, l *wallet.FundLock) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockLockRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.FundLock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.FundLock), args.Error(1)
}

func (m *MockLockRepo) GetActiveByReference(ctx context.Context, walletID uuid.UUID, referenceID, referenceType string) (*wallet.FundLock, error) {
	args := m.Called(ctx, walletID, referenceID, referenceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.FundLock), args.Error(1)
}

func (m *MockLockRepo) Update(ctx context.Context, l *wallet.FundLock) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockLockRepo) WithTx(tx pgx.Tx) wallet.LockRepository {
	return m
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(ctx context.Context, t *wallet.Transaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*wallet.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepo) GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*wallet.Transaction, error) {
	args := m.Called(ctx, start, end, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Transaction), args.Error(1)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeWallet(userID uuid.UUID, balance, locked string) *wallet.Wallet {
	return &wallet.Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      "USD",
		Balance:       dec(balance),
		LockedBalance: dec(locked),
		Status:        wallet.StatusActive,
		Version:       1,
	}
}

func newTestService(wallets *MockWalletRepo, locks *MockLockRepo, transactions *MockTransactionRepo, outboxRepo *MockOutboxRepo) Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(logger, &fakeTxRunner{}, wallets, locks, transactions, outboxRepo, nil, "USD")
}

func TestLedgerService_Lock(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	betID := uuid.New().String()

	t.Run("reserves available funds", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "100.00", "0.00")
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		locks.On("GetActiveByReference", ctx, w.ID, betID, "bet").Return(nil, nil).Once()
		wallets.On("Update", ctx, w).Return(nil).Once()
		locks.On("Create", ctx, mock.AnythingOfType("*wallet.FundLock")).Return(nil).Once()

		lock, err := svc.Lock(ctx, userID, dec("25.00"), betID, "bet", "")
		require.NoError(t, err)
		assert.True(t, lock.Amount.Equal(dec("25.00")))
		assert.Equal(t, wallet.LockStatusActive, lock.Status)
		assert.True(t, w.LockedBalance.Equal(dec("25.00")))
		assert.True(t, w.Balance.Equal(dec("100.00")), "lock must not move the balance")
		wallets.AssertExpectations(t)
		locks.AssertExpectations(t)
	})

	t.Run("repeat request returns existing lock", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "100.00", "25.00")
		existing := wallet.NewFundLock(w.ID, dec("25.00"), betID, "bet")
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		locks.On("GetActiveByReference", ctx, w.ID, betID, "bet").Return(existing, nil).Once()

		lock, err := svc.Lock(ctx, userID, dec("25.00"), betID, "bet", "")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, lock.ID)
		assert.True(t, w.LockedBalance.Equal(dec("25.00")), "no double reservation")
		wallets.AssertExpectations(t)
		locks.AssertExpectations(t)
	})

	t.Run("insufficient available funds", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		// 100 balance, 90 already locked: only 10 available
		w := activeWallet(userID, "100.00", "90.00")
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		locks.On("GetActiveByReference", ctx, w.ID, betID, "bet").Return(nil, nil).Once()

		_, err := svc.Lock(ctx, userID, dec("25.00"), betID, "bet", "")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindInsufficientFunds))
		wallets.AssertExpectations(t)
	})
}

func TestLedgerService_Debit(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("converts the lock and captures the funds", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		outboxRepo := new(MockOutboxRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), outboxRepo)

		w := activeWallet(userID, "100.00", "25.00")
		lock := wallet.NewFundLock(w.ID, dec("25.00"), uuid.New().String(), "bet")

		locks.On("GetByID", ctx, lock.ID).Return(lock, nil).Once()
		wallets.On("GetByID", ctx, w.ID).Return(w, nil).Once()
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		locks.On("Update", ctx, lock).Return(nil).Once()
		wallets.On("Update", ctx, w).Return(nil).Once()
		outboxRepo.On("Create", ctx, mock.AnythingOfType("*outbox.Message")).Return(nil).Once()

		err := svc.Debit(ctx, lock.ID, "")
		require.NoError(t, err)
		assert.Equal(t, wallet.LockStatusConverted, lock.Status)
		assert.True(t, w.Balance.Equal(dec("75.00")))
		assert.True(t, w.LockedBalance.Equal(dec("0.00")))
		wallets.AssertExpectations(t)
		locks.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("already converted lock is a no-op", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "75.00", "0.00")
		lock := wallet.NewFundLock(w.ID, dec("25.00"), uuid.New().String(), "bet")
		require.NoError(t, lock.MarkConverted())

		locks.On("GetByID", ctx, lock.ID).Return(lock, nil).Once()

		err := svc.Debit(ctx, lock.ID, "")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(dec("75.00")), "no double debit")
		locks.AssertExpectations(t)
		wallets.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("released lock cannot be debited", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "100.00", "0.00")
		lock := wallet.NewFundLock(w.ID, dec("25.00"), uuid.New().String(), "bet")
		require.NoError(t, lock.MarkReleased())

		locks.On("GetByID", ctx, lock.ID).Return(lock, nil).Once()
		wallets.On("GetByID", ctx, w.ID).Return(w, nil).Once()
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()

		err := svc.Debit(ctx, lock.ID, "")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindLockInactive))
	})
}

func TestLedgerService_Unlock(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("releases the reservation", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "100.00", "25.00")
		lock := wallet.NewFundLock(w.ID, dec("25.00"), uuid.New().String(), "bet")

		locks.On("GetByID", ctx, lock.ID).Return(lock, nil).Once()
		wallets.On("GetByID", ctx, w.ID).Return(w, nil).Once()
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		locks.On("Update", ctx, lock).Return(nil).Once()
		wallets.On("Update", ctx, w).Return(nil).Once()

		err := svc.Unlock(ctx, lock.ID, "")
		require.NoError(t, err)
		assert.Equal(t, wallet.LockStatusReleased, lock.Status)
		assert.True(t, w.Balance.Equal(dec("100.00")), "unlock must not move the balance")
		assert.True(t, w.LockedBalance.Equal(dec("0.00")))
	})

	t.Run("second termination fails", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		locks := new(MockLockRepo)
		svc := newTestService(wallets, locks, new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "100.00", "0.00")
		lock := wallet.NewFundLock(w.ID, dec("25.00"), uuid.New().String(), "bet")
		require.NoError(t, lock.MarkReleased())

		locks.On("GetByID", ctx, lock.ID).Return(lock, nil).Once()
		wallets.On("GetByID", ctx, w.ID).Return(w, nil).Once()
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()

		err := svc.Unlock(ctx, lock.ID, "")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindLockInactive))
	})
}

func TestLedgerService_DepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("deposit credits the balance and queues an audit record", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		outboxRepo := new(MockOutboxRepo)
		svc := newTestService(wallets, new(MockLockRepo), new(MockTransactionRepo), outboxRepo)

		w := activeWallet(userID, "50.00", "0.00")
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
		wallets.On("Update", ctx, w).Return(nil).Once()
		outboxRepo.On("Create", ctx, mock.MatchedBy(func(msg *outbox.Message) bool {
			tr, err := msg.GetTransaction()
			return err == nil && tr.Type == wallet.TransactionTypeDeposit && tr.Amount.Equal(dec("30.00"))
		})).Return(nil).Once()

		updated, err := svc.Deposit(ctx, userID, dec("30.00"), "dep-1", "")
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(dec("80.00")))
		outboxRepo.AssertExpectations(t)
	})

	t.Run("withdrawal cannot touch locked funds", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		svc := newTestService(wallets, new(MockLockRepo), new(MockTransactionRepo), new(MockOutboxRepo))

		// 100 balance with 80 locked: only 20 withdrawable
		w := activeWallet(userID, "100.00", "80.00")
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()

		_, err := svc.Withdraw(ctx, userID, dec("50.00"), "wd-1", "")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindInsufficientFunds))
		assert.True(t, w.Balance.Equal(dec("100.00")))
	})

	t.Run("frozen wallet rejects deposits", func(t *testing.T) {
		wallets := new(MockWalletRepo)
		svc := newTestService(wallets, new(MockLockRepo), new(MockTransactionRepo), new(MockOutboxRepo))

		w := activeWallet(userID, "50.00", "0.00")
		w.Status = wallet.StatusFrozen
		wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()

		_, err := svc.Deposit(ctx, userID, dec("30.00"), "dep-2", "")
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindWalletInactive))
	})
}

func TestLedgerService_Credit(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	wallets := new(MockWalletRepo)
	outboxRepo := new(MockOutboxRepo)
	svc := newTestService(wallets, new(MockLockRepo), new(MockTransactionRepo), outboxRepo)

	w := activeWallet(userID, "10.00", "0.00")
	betID := uuid.New().String()
	wallets.On("LockForUpdate", ctx, userID, "USD").Return(w, nil).Once()
	wallets.On("Update", ctx, w).Return(nil).Once()
	outboxRepo.On("Create", ctx, mock.MatchedBy(func(msg *outbox.Message) bool {
		tr, err := msg.GetTransaction()
		return err == nil && tr.Type == wallet.TransactionTypeBetWin && tr.ReferenceID == betID
	})).Return(nil).Once()

	updated, err := svc.Credit(ctx, userID, dec("62.50"), wallet.TransactionTypeBetWin, betID, "bet", "")
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("72.50")))
	outboxRepo.AssertExpectations(t)
}
