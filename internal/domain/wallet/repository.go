package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines wallet persistence operations. Implementations must
// support running inside a caller-provided transaction via WithTx so that a
// wallet row lock spans every mutation of one ledger operation.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByUserAndCurrency(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error)
	Update(ctx context.Context, w *Wallet) error

	// LockForUpdate acquires a pessimistic row lock on the wallet of
	// (userID, currency). All ledger mutations on one wallet serialize on
	// this lock; independent wallets proceed concurrently.
	LockForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*Wallet, error)
	WithTx(tx pgx.Tx) Repository
}

// LockRepository defines fund lock persistence operations.
type LockRepository interface {
	Create(ctx context.Context, l *FundLock) error
	GetByID(ctx context.Context, id uuid.UUID) (*FundLock, error)
	// GetActiveByReference finds an active lock by its idempotency anchor.
	// Returns nil, nil when none exists.
	GetActiveByReference(ctx context.Context, walletID uuid.UUID, referenceID, referenceType string) (*FundLock, error)
	Update(ctx context.Context, l *FundLock) error
	WithTx(tx pgx.Tx) LockRepository
}

// TransactionRepository manages the append-only audit ledger. Backed by a
// document store; rows arrive through the outbox poller.
type TransactionRepository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*Transaction, error)
}
