package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType categorizes a permanent balance movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeBetStake   TransactionType = "bet_stake"
	TransactionTypeBetWin     TransactionType = "bet_win"
	TransactionTypeBetRefund  TransactionType = "bet_refund"
)

// Transaction is the immutable audit record appended for every balance
// mutation. Amount is signed: negative for debits, positive for credits.
// Records are composed inside the wallet's database transaction and shipped
// to the audit ledger through the outbox, so BalanceBefore/BalanceAfter are
// always consistent with the movement they describe.
type Transaction struct {
	ID            uuid.UUID       `json:"id" bson:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id" bson:"wallet_id"`
	UserID        uuid.UUID       `json:"user_id" bson:"user_id"`
	Type          TransactionType `json:"type" bson:"type"`
	Amount        decimal.Decimal `json:"amount" bson:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" bson:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" bson:"balance_after"`
	ReferenceID   string          `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	ReferenceType string          `json:"reference_type,omitempty" bson:"reference_type,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
}

// NewTransaction records a movement of amount on the wallet, capturing the
// balance on both sides of it.
func NewTransaction(w *Wallet, txType TransactionType, amount, balanceBefore decimal.Decimal, referenceID, referenceType, correlationID string) *Transaction {
	return &Transaction{
		ID:            uuid.New(),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.Balance,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
	}
}
