package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/gateway/middleware"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
	"github.com/sportsbook-betting-core/internal/settlementengine"
)

// SettlementHandler enqueues settlement requests onto Kafka and serves
// settlement record reads. Settlement itself is asynchronous: the processor
// consumes the requests and drives the engine.
type SettlementHandler struct {
	requests producers.MessagePublisher
	engine   settlementengine.Engine
	logger   *slog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(logger *slog.Logger, requests producers.MessagePublisher, engine settlementengine.Engine) *SettlementHandler {
	return &SettlementHandler{
		requests: requests,
		engine:   engine,
		logger:   logger,
	}
}

// SettleEvent enqueues a whole-event settlement from the final score.
func (h *SettlementHandler) SettleEvent(c *gin.Context) {
	eventID, ok := h.idParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	var req SettleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request := h.newRequest(c, shared.SettlementRequestSettleEvent)
	request.EventID = eventID
	request.HomeScore = req.HomeScore
	request.AwayScore = req.AwayScore

	h.enqueue(c, request, eventID.String())
}

// SettleMarket enqueues a market settlement with explicit selection results.
func (h *SettlementHandler) SettleMarket(c *gin.Context) {
	marketID, ok := h.idParam(c, "id", "Invalid market ID")
	if !ok {
		return
	}

	var req SettleMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	results := make([]shared.SelectionResultInput, 0, len(req.Results))
	for _, r := range req.Results {
		selectionID, err := uuid.Parse(r.SelectionID)
		if err != nil {
			RespondBadRequest(c, "Invalid selection ID: "+r.SelectionID)
			return
		}
		results = append(results, shared.SelectionResultInput{SelectionID: selectionID, Result: r.Result})
	}

	request := h.newRequest(c, shared.SettlementRequestSettleMarket)
	request.MarketID = marketID
	request.Results = results

	h.enqueue(c, request, marketID.String())
}

// VoidMarket enqueues a market void.
func (h *SettlementHandler) VoidMarket(c *gin.Context) {
	marketID, ok := h.idParam(c, "id", "Invalid market ID")
	if !ok {
		return
	}

	var req VoidMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request := h.newRequest(c, shared.SettlementRequestVoidMarket)
	request.MarketID = marketID
	request.VoidReason = req.Reason

	h.enqueue(c, request, marketID.String())
}

// Retry enqueues a re-drive of the failed selections of a settlement record.
func (h *SettlementHandler) Retry(c *gin.Context) {
	settlementID, ok := h.idParam(c, "id", "Invalid settlement ID")
	if !ok {
		return
	}

	request := h.newRequest(c, shared.SettlementRequestRetry)
	request.SettlementID = settlementID

	h.enqueue(c, request, settlementID.String())
}

// GetByID retrieves a settlement record.
func (h *SettlementHandler) GetByID(c *gin.Context) {
	settlementID, ok := h.idParam(c, "id", "Invalid settlement ID")
	if !ok {
		return
	}

	record, err := h.engine.GetSettlement(c.Request.Context(), settlementID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapSettlementToResponse(record))
}

// GetByMarketID returns the settlement history of a market.
func (h *SettlementHandler) GetByMarketID(c *gin.Context) {
	marketID, ok := h.idParam(c, "id", "Invalid market ID")
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	records, err := h.engine.ListByMarket(c.Request.Context(), marketID, params.Page, params.PerPage)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	responses := make([]SettlementRecordResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, mapSettlementToResponse(r))
	}

	RespondOK(c, responses)
}

func (h *SettlementHandler) newRequest(c *gin.Context, requestType shared.SettlementRequestType) *shared.SettlementRequest {
	return &shared.SettlementRequest{
		RequestID:     uuid.New(),
		Type:          requestType,
		CorrelationID: middleware.GetCorrelationID(c),
		Timestamp:     time.Now().UTC(),
	}
}

// enqueue publishes the request keyed by its subject id, keeping all requests
// touching the same market or event in order on one partition.
func (h *SettlementHandler) enqueue(c *gin.Context, request *shared.SettlementRequest, key string) {
	if err := h.requests.Publish(c.Request.Context(), key, request); err != nil {
		h.logger.Error("Failed to enqueue settlement request",
			"type", string(request.Type),
			"request_id", request.RequestID.String(),
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	h.logger.Info("Enqueued settlement request",
		"type", string(request.Type),
		"request_id", request.RequestID.String(),
	)
	RespondAccepted(c, SettlementAcceptedResponse{
		RequestID: request.RequestID.String(),
		Status:    "accepted",
	})
}

func (h *SettlementHandler) idParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	idParam := c.Param(name)
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid ID parameter", "id", idParam, "error", err)
		RespondBadRequest(c, message)
		return uuid.Nil, false
	}
	return id, true
}
