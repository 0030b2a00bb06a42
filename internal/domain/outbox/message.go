// Package outbox implements the transactional outbox feeding the wallet
// transaction audit ledger: records are written in the same database
// transaction as the balance mutation they describe and shipped to the
// document store by a poller.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

// Status defines message publishing states.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message stores one wallet transaction record for reliable publishing.
type Message struct {
	ID            int64           `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a wallet transaction record for the outbox.
func NewMessage(t *wallet.Transaction) (*Message, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		Payload:       payload,
		Status:        StatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetTransaction extracts the wallet transaction record from the payload.
func (m *Message) GetTransaction() (*wallet.Transaction, error) {
	var t wallet.Transaction
	if err := json.Unmarshal(m.Payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
