// Package wallet defines the fund custody entities: the Wallet holding a
// user's balance, the FundLock reserving part of it, and the Transaction
// audit record appended on every permanent balance movement.
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/domain/shared"
)

// Status describes the lifecycle state of a wallet. Balance mutations are
// only permitted while the wallet is active.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

// Wallet holds a user's funds in one currency. Invariant at all times:
// 0 <= LockedBalance <= Balance. Wallets are created once per
// (user, currency) and closed rather than deleted.
type Wallet struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"`
	Status        Status          `json:"status"`
	Version       int             `json:"version"` // For optimistic locking
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewWallet creates an empty active wallet for the given user and currency.
func NewWallet(userID uuid.UUID, currency string) (*Wallet, error) {
	if len(currency) != 3 {
		return nil, shared.NewError(shared.KindWalletNotFound, "currency must be a 3-letter code")
	}

	now := time.Now()
	return &Wallet{
		ID:            uuid.New(),
		UserID:        userID,
		Currency:      currency,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
		Status:        StatusActive,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AvailableBalance is the portion of the balance not reserved by locks.
func (w *Wallet) AvailableBalance() decimal.Decimal {
	return w.Balance.Sub(w.LockedBalance)
}

// EnsureActive rejects mutations on frozen or closed wallets.
func (w *Wallet) EnsureActive() error {
	if w.Status != StatusActive {
		return shared.NewError(shared.KindWalletInactive, "wallet is "+string(w.Status))
	}
	return nil
}

// Reserve raises the locked balance by amount. Fails INSUFFICIENT_FUNDS when
// the amount exceeds the available balance.
func (w *Wallet) Reserve(amount decimal.Decimal) error {
	if err := w.EnsureActive(); err != nil {
		return err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewError(shared.KindInvalidStake, "amount must be positive")
	}
	if amount.GreaterThan(w.AvailableBalance()) {
		return shared.NewError(shared.KindInsufficientFunds, "available balance "+w.AvailableBalance().StringFixed(2))
	}

	w.LockedBalance = w.LockedBalance.Add(amount)
	w.touch()
	return nil
}

// Release lowers the locked balance by amount without moving funds.
func (w *Wallet) Release(amount decimal.Decimal) error {
	if err := w.EnsureActive(); err != nil {
		return err
	}
	if amount.GreaterThan(w.LockedBalance) {
		return shared.NewError(shared.KindLockInactive, "release exceeds locked balance")
	}

	w.LockedBalance = w.LockedBalance.Sub(amount)
	w.touch()
	return nil
}

// Debit permanently removes amount from the balance. The caller releases any
// covering lock first so the invariant holds throughout.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if err := w.EnsureActive(); err != nil {
		return err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewError(shared.KindInvalidStake, "amount must be positive")
	}
	if amount.GreaterThan(w.Balance) {
		return shared.NewError(shared.KindInsufficientFunds, "balance "+w.Balance.StringFixed(2))
	}
	if w.Balance.Sub(amount).LessThan(w.LockedBalance) {
		return shared.NewError(shared.KindInsufficientFunds, "debit would undercut locked balance")
	}

	w.Balance = w.Balance.Sub(amount)
	w.touch()
	return nil
}

// Credit permanently adds amount to the balance. Credits are always legal on
// an active wallet.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if err := w.EnsureActive(); err != nil {
		return err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewError(shared.KindInvalidStake, "amount must be positive")
	}

	w.Balance = w.Balance.Add(amount)
	w.touch()
	return nil
}

func (w *Wallet) touch() {
	w.UpdatedAt = time.Now()
	w.Version++
}
