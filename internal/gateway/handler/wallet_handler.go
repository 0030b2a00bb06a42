package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsbook-betting-core/internal/gateway/middleware"
	"github.com/sportsbook-betting-core/internal/walletledger"
)

// WalletHandler handles HTTP requests for wallet operations.
type WalletHandler struct {
	ledger walletledger.Service
	logger *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, ledger walletledger.Service) *WalletHandler {
	return &WalletHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Create opens a wallet for a user. A second create for the same user fails
// with WALLET_EXISTS.
func (h *WalletHandler) Create(c *gin.Context) {
	var req CreateWalletRequest
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

	w, err := h.ledger.CreateWallet(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to create wallet", "user_id", req.UserID, "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondCreated(c, mapWalletToResponse(w))
}

// GetBalance retrieves a user's wallet with its balances.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	w, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// Deposit adds funds to a user's wallet.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	amount, req, ok := h.bindMovement(c)
	if !ok {
		return
	}

	w, err := h.ledger.Deposit(c.Request.Context(), userID, amount, req.ReferenceID, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Error("Failed to deposit", "user_id", userID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// Withdraw removes available funds from a user's wallet. Locked funds cannot
// be withdrawn.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	amount, req, ok := h.bindMovement(c)
	if !ok {
		return
	}

	w, err := h.ledger.Withdraw(c.Request.Context(), userID, amount, req.ReferenceID, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Error("Failed to withdraw", "user_id", userID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// GetTransactions returns a page of the user's audit records, newest first.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	transactions, total, err := h.ledger.GetTransactions(c.Request.Context(), userID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to get transactions", "user_id", userID.String(), "error", err)
		RespondDomainError(c, err)
		return
	}

	responses := make([]TransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		responses = append(responses, mapTransactionToResponse(tx))
	}

	RespondWithPaginatedData(c, 200, responses, params.Page, params.PerPage, int(total))
}

func (h *WalletHandler) userIDParam(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("userId")
	userID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid user ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *WalletHandler) bindMovement(c *gin.Context) (decimal.Decimal, MovementRequest, bool) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return decimal.Zero, req, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		RespondBadRequest(c, "Amount must be a positive decimal string")
		return decimal.Zero, req, false
	}
	return amount, req, true
}
