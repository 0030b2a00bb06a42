package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/betbook"
	"github.com/sportsbook-betting-core/internal/domain/bet"
	"github.com/sportsbook-betting-core/internal/gateway/middleware"
)

// BetHandler handles HTTP requests for bet operations.
type BetHandler struct {
	book   betbook.Service
	logger *slog.Logger
}

// NewBetHandler creates a new bet handler
func NewBetHandler(logger *slog.Logger, book betbook.Service) *BetHandler {
	return &BetHandler{
		book:   book,
		logger: logger,
	}
}

// Place accepts a single or accumulator bet. Placement is synchronous: the
// response carries the accepted bet with its locked odds, or the business
// error that rejected it (ODDS_CHANGED responses include the current odds so
// the client can re-quote).
func (h *BetHandler) Place(c *gin.Context) {
	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	stake, err := decimal.NewFromString(req.Stake)
	if err != nil {
		RespondBadRequest(c, "Stake must be a decimal string")
		return
	}

	legs := make([]betbook.LegRequest, 0, len(req.Selections))
	for _, sel := range req.Selections {
		leg, bindErr := parseLeg(sel)
		if bindErr != "" {
			RespondBadRequest(c, bindErr)
			return
		}
		legs = append(legs, leg)
	}

	correlationID := middleware.GetCorrelationID(c)

	var placed *bet.Bet
	if req.Type == string(bet.TypeAccumulator) {
		placed, err = h.book.PlaceAccumulator(c.Request.Context(), userID, stake, legs, correlationID)
	} else {
		if len(legs) != 1 {
			RespondBadRequest(c, "Single bet must have exactly one selection")
			return
		}
		placed, err = h.book.PlaceSingle(c.Request.Context(), userID, stake, legs[0], correlationID)
	}
	if err != nil {
		h.logger.Warn("Bet rejected", "user_id", req.UserID, "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapBetToResponse(placed))
}

// GetByID retrieves a bet with its selections.
func (h *BetHandler) GetByID(c *gin.Context) {
	betID, ok := h.betIDParam(c)
	if !ok {
		return
	}

	b, err := h.book.GetBet(c.Request.Context(), betID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapBetToResponse(b))
}

// GetByUserID returns a page of the user's bets, newest first.
func (h *BetHandler) GetByUserID(c *gin.Context) {
	idParam := c.Param("userId")
	userID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	bets, total, err := h.book.ListByUser(c.Request.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list bets", "user_id", idParam, "error", err)
		RespondDomainError(c, err)
		return
	}

	responses := make([]BetResponse, 0, len(bets))
	for _, b := range bets {
		responses = append(responses, mapBetToResponse(b))
	}

	RespondWithPaginatedData(c, 200, responses, params.Page, params.PerPage, int(total))
}

// QuoteCashout quotes the current cash-out value without committing to it.
func (h *BetHandler) QuoteCashout(c *gin.Context) {
	betID, ok := h.betIDParam(c)
	if !ok {
		return
	}

	value, err := h.book.CashoutValue(c.Request.Context(), betID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, CashoutQuoteResponse{
		BetID:     betID.String(),
		Value:     value.StringFixed(2),
		Available: !value.IsZero(),
	})
}

// Cashout settles an open bet early at its current cash-out value.
func (h *BetHandler) Cashout(c *gin.Context) {
	betID, ok := h.betIDParam(c)
	if !ok {
		return
	}

	b, err := h.book.Cashout(c.Request.Context(), betID, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Warn("Cashout rejected", "bet_id", betID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapBetToResponse(b))
}

func (h *BetHandler) betIDParam(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	betID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid bet ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid bet ID")
		return uuid.Nil, false
	}
	return betID, true
}

// parseLeg converts a wire-level selection into a leg request, returning a
// non-empty message on bad input.
func parseLeg(sel BetSelectionRequest) (betbook.LegRequest, string) {
	eventID, err := uuid.Parse(sel.EventID)
	if err != nil {
		return betbook.LegRequest{}, "Invalid event ID: " + sel.EventID
	}
	marketID, err := uuid.Parse(sel.MarketID)
	if err != nil {
		return betbook.LegRequest{}, "Invalid market ID: " + sel.MarketID
	}
	selectionID, err := uuid.Parse(sel.SelectionID)
	if err != nil {
		return betbook.LegRequest{}, "Invalid selection ID: " + sel.SelectionID
	}
	odds, err := decimal.NewFromString(sel.ExpectedOdds)
	if err != nil || odds.LessThanOrEqual(decimal.NewFromInt(1)) {
		return betbook.LegRequest{}, "Expected odds must be a decimal greater than 1"
	}

	return betbook.LegRequest{
		EventID:      eventID,
		MarketID:     marketID,
		SelectionID:  selectionID,
		ExpectedOdds: odds,
	}, ""
}
