// Package processor consumes settlement requests from Kafka and drives the
// settlement engine. Requests are delivered at least once; every operation
// the processor triggers is idempotent, so redelivery is safe.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sportsbook-betting-core/internal/domain/market"
	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/settlementengine"
)

// ProcessingService executes one settlement request to completion.
type ProcessingService interface {
	ProcessRequest(ctx context.Context, request *shared.SettlementRequest) error
}

type engineProcessingService struct {
	engine settlementengine.Engine
	logger *slog.Logger
}

// NewProcessingService dispatches settlement requests onto the engine.
func NewProcessingService(logger *slog.Logger, engine settlementengine.Engine) ProcessingService {
	return &engineProcessingService{
		engine: engine,
		logger: logger,
	}
}

func (s *engineProcessingService) ProcessRequest(ctx context.Context, request *shared.SettlementRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Processing settlement request",
		"request_id", request.RequestID.String(),
		"type", string(request.Type),
	)

	switch request.Type {
	case shared.SettlementRequestSettleEvent:
		_, err := s.engine.SettleEvent(ctx, request.EventID, market.Score{
			Home: request.HomeScore,
			Away: request.AwayScore,
		}, request.CorrelationID)
		return err

	case shared.SettlementRequestSettleMarket:
		_, err := s.engine.SettleMarket(ctx, request.MarketID, request.Results, request.CorrelationID)
		return err

	case shared.SettlementRequestVoidMarket:
		_, err := s.engine.VoidMarket(ctx, request.MarketID, request.VoidReason, request.CorrelationID)
		return err

	case shared.SettlementRequestRetry:
		_, err := s.engine.Retry(ctx, request.SettlementID, request.CorrelationID)
		return err
	}

	return fmt.Errorf("settlement request %s has unknown type %q", request.RequestID, request.Type)
}
