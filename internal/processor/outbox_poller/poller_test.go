package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sportsbook-betting-core/internal/config"
	"github.com/sportsbook-betting-core/internal/domain/outbox"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

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

var _ outbox.Repository = (*MockOutboxRepo)(nil)

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

var _ wallet.TransactionRepository = (*MockTransactionRepo)(nil)

type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func pendingMessage(t *testing.T, attempts int) *outbox.Message {
	t.Helper()
	record := &wallet.Transaction{
		ID:            uuid.New(),
		WalletID:      uuid.New(),
		UserID:        uuid.New(),
		Type:          wallet.TransactionTypeDeposit,
		Amount:        decimal.RequireFromString("100.00"),
		BalanceBefore: decimal.RequireFromString("50.00"),
		BalanceAfter:  decimal.RequireFromString("150.00"),
		CorrelationID: "corr-42",
		CreatedAt:     time.Now().UTC(),
	}
	msg, err := outbox.NewMessage(record)
	require.NoError(t, err)
	msg.ID = 7
	msg.Attempts = attempts
	return msg
}

func TestAuditPublisher_PublishToLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("writes record and marks processed", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		transactions := new(MockTransactionRepo)
		publisher := NewAuditPublisher(testLogger(), outboxRepo, transactions)

		msg := pendingMessage(t, 0)
		transactions.On("Create", ctx, mock.MatchedBy(func(rec *wallet.Transaction) bool {
			return rec.ID == msg.TransactionID && rec.Type == wallet.TransactionTypeDeposit
		})).Return(nil).Once()
		outboxRepo.On("UpdateStatus", ctx, msg.ID, outbox.StatusProcessed).Return(nil).Once()

		err := publisher.PublishToLedger(ctx, msg)
		assert.NoError(t, err)
		transactions.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("duplicate audit record counts as published", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		transactions := new(MockTransactionRepo)
		publisher := NewAuditPublisher(testLogger(), outboxRepo, transactions)

		msg := pendingMessage(t, 2)
		transactions.On("Create", ctx, mock.Anything).
			Return(shared.NewError(shared.KindDuplicateEvent, "audit record already exists")).Once()
		outboxRepo.On("UpdateStatus", ctx, msg.ID, outbox.StatusProcessed).Return(nil).Once()

		err := publisher.PublishToLedger(ctx, msg)
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("malformed payload is parked", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		transactions := new(MockTransactionRepo)
		publisher := NewAuditPublisher(testLogger(), outboxRepo, transactions)

		msg := pendingMessage(t, 0)
		msg.Payload = json.RawMessage(`{"amount": "not-a-decimal`)
		outboxRepo.On("UpdateStatus", ctx, msg.ID, outbox.StatusFailedToPublish).Return(nil).Once()

		err := publisher.PublishToLedger(ctx, msg)
		assert.Error(t, err)
		outboxRepo.AssertExpectations(t)
		transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ledger write failure is returned for retry", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		transactions := new(MockTransactionRepo)
		publisher := NewAuditPublisher(testLogger(), outboxRepo, transactions)

		msg := pendingMessage(t, 1)
		transactions.On("Create", ctx, mock.Anything).Return(errors.New("mongo unavailable")).Once()

		err := publisher.PublishToLedger(ctx, msg)
		assert.Error(t, err)
		outboxRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPoller_ProcessPendingMessages(t *testing.T) {
	ctx := context.Background()
	cfg := &config.OutboxConfig{
		PollingInterval:  10 * time.Millisecond,
		BatchSize:        50,
		MaxRetryAttempts: 3,
	}

	t.Run("publishes each pending message", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		publisher := new(MockAuditPublisher)
		poller := NewPoller(cfg, outboxRepo, publisher, testLogger())

		first := pendingMessage(t, 0)
		second := pendingMessage(t, 0)
		second.ID = 8
		outboxRepo.On("GetPending", ctx, cfg.BatchSize).
			Return([]*outbox.Message{first, second}, nil).Once()
		publisher.On("PublishToLedger", ctx, first).Return(nil).Once()
		publisher.On("PublishToLedger", ctx, second).Return(nil).Once()

		err := poller.processPendingMessages(ctx)
		assert.NoError(t, err)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure increments attempts", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		publisher := new(MockAuditPublisher)
		poller := NewPoller(cfg, outboxRepo, publisher, testLogger())

		msg := pendingMessage(t, 0)
		outboxRepo.On("GetPending", ctx, cfg.BatchSize).Return([]*outbox.Message{msg}, nil).Once()
		publisher.On("PublishToLedger", ctx, msg).Return(errors.New("ledger down")).Once()
		outboxRepo.On("IncrementAttempts", ctx, msg.ID).Return(nil).Once()

		err := poller.processPendingMessages(ctx)
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
		outboxRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("max retries parks the message", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		publisher := new(MockAuditPublisher)
		poller := NewPoller(cfg, outboxRepo, publisher, testLogger())

		msg := pendingMessage(t, cfg.MaxRetryAttempts-1)
		outboxRepo.On("GetPending", ctx, cfg.BatchSize).Return([]*outbox.Message{msg}, nil).Once()
		publisher.On("PublishToLedger", ctx, msg).Return(errors.New("ledger down")).Once()
		outboxRepo.On("IncrementAttempts", ctx, msg.ID).Return(nil).Once()
		outboxRepo.On("UpdateStatus", ctx, msg.ID, outbox.StatusFailedToPublish).Return(nil).Once()

		err := poller.processPendingMessages(ctx)
		assert.NoError(t, err)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		outboxRepo := new(MockOutboxRepo)
		publisher := new(MockAuditPublisher)
		poller := NewPoller(cfg, outboxRepo, publisher, testLogger())

		outboxRepo.On("GetPending", ctx, cfg.BatchSize).
			Return(nil, errors.New("connection refused")).Once()

		err := poller.processPendingMessages(ctx)
		assert.Error(t, err)
		publisher.AssertNotCalled(t, "PublishToLedger", mock.Anything, mock.Anything)
	})
}
