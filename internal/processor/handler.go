package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
)

// SettlementRequestHandler turns Kafka messages into settlement engine calls.
// Error handling decides the offset's fate:
//
//   - unparseable messages go to the DLQ and are committed: retrying a
//     poison message can never succeed;
//   - business errors (unknown market, settled bet) are logged and
//     committed: the request is wrong or stale, not the infrastructure;
//   - everything else is returned uncommitted so Kafka redelivers it.
type SettlementRequestHandler struct {
	processingService ProcessingService
	dlq               producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewSettlementRequestHandler creates a new handler
func NewSettlementRequestHandler(
	logger *slog.Logger,
	processingService ProcessingService,
	dlq producers.DeadLetterPublisher,
) *SettlementRequestHandler {
	return &SettlementRequestHandler{
		processingService: processingService,
		dlq:               dlq,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message.
func (h *SettlementRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.SettlementRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal settlement request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.dlq != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				return nil
			}
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	if err := h.processingService.ProcessRequest(ctx, &request); err != nil {
		var be *shared.Error
		if errors.As(err, &be) {
			// The request itself is bad; redelivery would fail identically.
			logger.Warn("Settlement request rejected",
				"request_id", request.RequestID.String(),
				"type", string(request.Type),
				"kind", string(be.Kind),
				"error", err,
			)
			return nil
		}

		logger.Error("Failed to process settlement request",
			"request_id", request.RequestID.String(),
			"type", string(request.Type),
			"error", err,
		)
		return fmt.Errorf("processing settlement request %s failed: %w", request.RequestID, err)
	}

	logger.Info("Processed settlement request", "request_id", request.RequestID.String())
	return nil
}
