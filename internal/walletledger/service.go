// Package walletledger implements fund custody: wallet lifecycle, deposits
// and withdrawals, the lock/unlock/debit/credit cycle that bet placement and
// settlement drive, and the audit trail written through the outbox.
package walletledger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/domain/outbox"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service is the wallet ledger: every permanent balance movement goes through
// it, inside a transaction holding the wallet row lock, with an audit record
// queued in the same transaction.
type Service interface {
	CreateWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)

	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, correlationID string) (*wallet.Wallet, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, correlationID string) (*wallet.Wallet, error)

	// Lock reserves amount against the wallet's available balance. Requests
	// are idempotent on (referenceID, referenceType): a repeat returns the
	// existing active lock.
	Lock(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, referenceType, correlationID string) (*wallet.FundLock, error)

	// Unlock releases an active lock without moving funds.
	Unlock(ctx context.Context, lockID uuid.UUID, correlationID string) error

	// Debit converts an active lock into a permanent balance reduction. A
	// lock already converted is a no-op, making placement retries safe.
	Debit(ctx context.Context, lockID uuid.UUID, correlationID string) error

	// Credit adds amount to the wallet's balance, recording it under the
	// given transaction type and reference.
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType wallet.TransactionType, referenceID, referenceType, correlationID string) (*wallet.Wallet, error)

	// CreditTx is Credit running inside a caller-provided transaction, so a
	// settlement can pay out atomically with the bet state change.
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, txType wallet.TransactionType, referenceID, referenceType, correlationID string) (*wallet.Wallet, error)

	GetTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*wallet.Transaction, int64, error)
}

type ledgerService struct {
	logger       *slog.Logger
	db           TxRunner
	wallets      wallet.Repository
	locks        wallet.LockRepository
	transactions wallet.TransactionRepository
	outboxRepo   outbox.Repository
	events       producers.MessagePublisher
	currency     string
}

// NewService wires the wallet ledger over its repositories. The events
// producer may be nil; event publishing is best effort and never blocks a
// committed movement.
func NewService(
	logger *slog.Logger,
	db TxRunner,
	wallets wallet.Repository,
	locks wallet.LockRepository,
	transactions wallet.TransactionRepository,
	outboxRepo outbox.Repository,
	events producers.MessagePublisher,
	currency string,
) Service {
	return &ledgerService{
		logger:       logger,
		db:           db,
		wallets:      wallets,
		locks:        locks,
		transactions: transactions,
		outboxRepo:   outboxRepo,
		events:       events,
		currency:     currency,
	}
}

// CreateWallet opens an empty wallet for the user in the configured currency.
// Fails WALLET_EXISTS when the user already has one.
func (s *ledgerService) CreateWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w, err := wallet.NewWallet(userID, s.currency)
	if err != nil {
		return nil, err
	}

	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("Created wallet", "wallet_id", w.ID.String(), "user_id", userID.String())
	return w, nil
}

// GetBalance returns the user's wallet with its current balances.
func (s *ledgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return s.wallets.GetByUserAndCurrency(ctx, userID, s.currency)
}

// Deposit permanently adds amount to the wallet's balance.
func (s *ledgerService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, correlationID string) (*wallet.Wallet, error) {
	var updated *wallet.Wallet

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		w, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID, s.currency)
		if err != nil {
			return err
		}

		balanceBefore := w.Balance
		if err := w.Credit(amount); err != nil {
			return err
		}
		if err := s.wallets.WithTx(tx).Update(ctx, w); err != nil {
			return err
		}

		t := wallet.NewTransaction(w, wallet.TransactionTypeDeposit, amount, balanceBefore, referenceID, "deposit", correlationID)
		if err := s.appendAudit(ctx, tx, t); err != nil {
			return err
		}

		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovement(ctx, shared.EventWalletDeposit, updated, amount, referenceID, "deposit", correlationID)
	return updated, nil
}

// Withdraw permanently removes amount from the wallet's balance. Locked funds
// are not withdrawable.
func (s *ledgerService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, correlationID string) (*wallet.Wallet, error) {
	var updated *wallet.Wallet

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		w, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID, s.currency)
		if err != nil {
			return err
		}

		balanceBefore := w.Balance
		if err := w.Debit(amount); err != nil {
			return err
		}
		if err := s.wallets.WithTx(tx).Update(ctx, w); err != nil {
			return err
		}

		t := wallet.NewTransaction(w, wallet.TransactionTypeWithdrawal, amount.Neg(), balanceBefore, referenceID, "withdrawal", correlationID)
		if err := s.appendAudit(ctx, tx, t); err != nil {
			return err
		}

		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovement(ctx, shared.EventWalletWithdrawal, updated, amount.Neg(), referenceID, "withdrawal", correlationID)
	return updated, nil
}

// Lock reserves amount of the wallet's available balance for the operation
// identified by (referenceID, referenceType).
func (s *ledgerService) Lock(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, referenceID, referenceType, correlationID string) (*wallet.FundLock, error) {
	var lock *wallet.FundLock

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		w, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID, s.currency)
		if err != nil {
			return err
		}

		// Idempotency: a repeat of the same lock request returns the lock
		// created the first time.
		existing, err := s.locks.WithTx(tx).GetActiveByReference(ctx, w.ID, referenceID, referenceType)
		if err != nil {
			return err
		}
		if existing != nil {
			lock = existing
			return nil
		}

		if err := w.Reserve(amount); err != nil {
			return err
		}
		if err := s.wallets.WithTx(tx).Update(ctx, w); err != nil {
			return err
		}

		lock = wallet.NewFundLock(w.ID, amount, referenceID, referenceType)
		return s.locks.WithTx(tx).Create(ctx, lock)
	})
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Unlock releases an active lock, freeing its funds without moving them.
func (s *ledgerService) Unlock(ctx context.Context, lockID uuid.UUID, correlationID string) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lock, err := s.locks.WithTx(tx).GetByID(ctx, lockID)
		if err != nil {
			return err
		}

		w, err := s.lockWalletByID(ctx, tx, lock.WalletID)
		if err != nil {
			return err
		}

		if err := lock.MarkReleased(); err != nil {
			return err
		}
		if err := w.Release(lock.Amount); err != nil {
			return err
		}

		if err := s.locks.WithTx(tx).Update(ctx, lock); err != nil {
			return err
		}
		return s.wallets.WithTx(tx).Update(ctx, w)
	})
}

// Debit converts an active lock into a permanent debit of its amount,
// releasing the reservation and removing the funds in one step. The caller
// announces the movement (a bet placement publishes bet.placed), so no wallet
// event is emitted here.
func (s *ledgerService) Debit(ctx context.Context, lockID uuid.UUID, correlationID string) error {
	return s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lock, err := s.locks.WithTx(tx).GetByID(ctx, lockID)
		if err != nil {
			return err
		}

		// A redelivered debit of an already-converted lock is a no-op.
		if lock.Status == wallet.LockStatusConverted {
			return nil
		}

		w, err := s.lockWalletByID(ctx, tx, lock.WalletID)
		if err != nil {
			return err
		}

		if err := lock.MarkConverted(); err != nil {
			return err
		}

		balanceBefore := w.Balance
		if err := w.Release(lock.Amount); err != nil {
			return err
		}
		if err := w.Debit(lock.Amount); err != nil {
			return err
		}

		if err := s.locks.WithTx(tx).Update(ctx, lock); err != nil {
			return err
		}
		if err := s.wallets.WithTx(tx).Update(ctx, w); err != nil {
			return err
		}

		t := wallet.NewTransaction(w, wallet.TransactionTypeBetStake, lock.Amount.Neg(), balanceBefore, lock.ReferenceID, lock.ReferenceType, correlationID)
		return s.appendAudit(ctx, tx, t)
	})
}

// Credit permanently adds amount to the wallet, recording the movement under
// txType. Used for winnings, refunds and cashout payouts.
func (s *ledgerService) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType wallet.TransactionType, referenceID, referenceType, correlationID string) (*wallet.Wallet, error) {
	var updated *wallet.Wallet

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		w, err := s.CreditTx(ctx, tx, userID, amount, txType, referenceID, referenceType, correlationID)
		if err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMovement(ctx, shared.EventWalletCredit, updated, amount, referenceID, referenceType, correlationID)
	return updated, nil
}

// CreditTx applies a credit inside the caller's transaction. The caller owns
// commit and event publication.
func (s *ledgerService) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, txType wallet.TransactionType, referenceID, referenceType, correlationID string) (*wallet.Wallet, error) {
	w, err := s.wallets.WithTx(tx).LockForUpdate(ctx, userID, s.currency)
	if err != nil {
		return nil, err
	}

	balanceBefore := w.Balance
	if err := w.Credit(amount); err != nil {
		return nil, err
	}
	if err := s.wallets.WithTx(tx).Update(ctx, w); err != nil {
		return nil, err
	}

	t := wallet.NewTransaction(w, txType, amount, balanceBefore, referenceID, referenceType, correlationID)
	if err := s.appendAudit(ctx, tx, t); err != nil {
		return nil, err
	}

	return w, nil
}

// GetTransactions returns a page of the user's audit records from the ledger.
func (s *ledgerService) GetTransactions(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*wallet.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	transactions, err := s.transactions.GetByUserID(ctx, userID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.transactions.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// lockWalletByID resolves a wallet id to its (user, currency) row lock.
func (s *ledgerService) lockWalletByID(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*wallet.Wallet, error) {
	w, err := s.wallets.WithTx(tx).GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return s.wallets.WithTx(tx).LockForUpdate(ctx, w.UserID, w.Currency)
}

// appendAudit queues the transaction record in the outbox within the caller's
// database transaction; the poller ships it to the ledger after commit.
func (s *ledgerService) appendAudit(ctx context.Context, tx pgx.Tx, t *wallet.Transaction) error {
	msg, err := outbox.NewMessage(t)
	if err != nil {
		return err
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}

func (s *ledgerService) publishMovement(ctx context.Context, eventType shared.EventType, w *wallet.Wallet, amount decimal.Decimal, referenceID, referenceType, correlationID string) {
	if s.events == nil {
		return
	}

	event := shared.NewEvent(eventType, correlationID, shared.WalletMovementPayload{
		UserID:        w.UserID,
		WalletID:      w.ID,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
	})
	if err := s.events.Publish(ctx, w.ID.String(), event); err != nil {
		s.logger.Error("Failed to publish wallet event", "type", string(eventType), "wallet_id", w.ID.String(), "error", err)
	}
}
