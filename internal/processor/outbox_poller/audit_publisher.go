// Package outbox_poller ships wallet audit records from the transactional
// outbox to the document-store audit ledger. The ledger is append-only and
// keyed by transaction id, so re-shipping a record after a crash is harmless.
package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sportsbook-betting-core/internal/domain/outbox"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

// AuditPublisher publishes one outbox message to the audit ledger.
type AuditPublisher interface {
	PublishToLedger(ctx context.Context, message *outbox.Message) error
}

type auditPublisher struct {
	outboxRepo   outbox.Repository
	transactions wallet.TransactionRepository
	logger       *slog.Logger
}

// NewAuditPublisher creates a new publisher
func NewAuditPublisher(
	logger *slog.Logger,
	outboxRepo outbox.Repository,
	transactions wallet.TransactionRepository,
) AuditPublisher {
	return &auditPublisher{
		outboxRepo:   outboxRepo,
		transactions: transactions,
		logger:       logger,
	}
}

// PublishToLedger writes the wrapped transaction record to the audit ledger
// and marks the outbox message processed. A record that already exists counts
// as published.
func (p *auditPublisher) PublishToLedger(ctx context.Context, message *outbox.Message) error {
	record, err := message.GetTransaction()
	if err != nil {
		p.logger.Error("Failed to unmarshal transaction record from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		// Malformed payloads can never ship; park them instead of retrying.
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to mark outbox message FAILED_TO_PUBLISH after unmarshal error",
				"outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if record.CorrelationID != "" {
		logger = p.logger.With("correlation_id", record.CorrelationID)
	}

	if err := p.transactions.Create(ctx, record); err != nil {
		var be *shared.Error
		if errors.As(err, &be) && be.Kind == shared.KindDuplicateEvent {
			logger.Info("Audit record already exists", "transaction_id", record.ID.String())
		} else {
			logger.Error("Failed to write audit record", "transaction_id", record.ID.String(), "error", err)
			return fmt.Errorf("failed to write audit record %s: %w", record.ID, err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		logger.Error("Audit write OK but failed to mark outbox message PROCESSED",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		return fmt.Errorf("audit write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.TransactionID, message.ID, err)
	}

	logger.Info("Shipped audit record", "outbox_id", message.ID, "transaction_id", message.TransactionID.String())
	return nil
}
