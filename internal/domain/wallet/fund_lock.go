package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/domain/shared"
)

// LockStatus describes the lifecycle of a fund lock. A lock is terminated by
// exactly one of Unlock (released) or Debit (converted); a second
// termination attempt fails rather than double-applying.
type LockStatus string

const (
	LockStatusActive    LockStatus = "active"
	LockStatusReleased  LockStatus = "released"
	LockStatusConverted LockStatus = "converted"
)

// FundLock is a reversible reservation of wallet funds pending the outcome
// of the operation identified by (ReferenceID, ReferenceType).
type FundLock struct {
	ID            uuid.UUID       `json:"id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   string          `json:"reference_id"`
	ReferenceType string          `json:"reference_type"`
	Status        LockStatus      `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewFundLock creates an active lock over amount on the given wallet.
func NewFundLock(walletID uuid.UUID, amount decimal.Decimal, referenceID, referenceType string) *FundLock {
	now := time.Now()
	return &FundLock{
		ID:            uuid.New(),
		WalletID:      walletID,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Status:        LockStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkReleased terminates the lock without capturing funds.
func (l *FundLock) MarkReleased() error {
	if l.Status != LockStatusActive {
		return shared.NewError(shared.KindLockInactive, "lock is "+string(l.Status))
	}
	l.Status = LockStatusReleased
	l.UpdatedAt = time.Now()
	return nil
}

// MarkConverted terminates the lock as captured by a debit.
func (l *FundLock) MarkConverted() error {
	if l.Status != LockStatusActive {
		return shared.NewError(shared.KindLockInactive, "lock is "+string(l.Status))
	}
	l.Status = LockStatusConverted
	l.UpdatedAt = time.Now()
	return nil
}
