package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/gateway/middleware"
)

// Response is the standard API envelope.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// MetaInfo represents pagination metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

// statusForKind maps a business error kind onto its HTTP status.
func statusForKind(kind shared.ErrorKind) int {
	switch kind {
	case shared.KindWalletNotFound, shared.KindLockNotFound, shared.KindBetNotFound,
		shared.KindMarketNotFound, shared.KindEventNotFound, shared.KindSelectionNotFound,
		shared.KindSettlementNotFound, shared.KindTransactionNotFound:
		return http.StatusNotFound
	case shared.KindWalletExists, shared.KindBetAlreadySettled, shared.KindDuplicateEvent,
		shared.KindLockInactive:
		return http.StatusConflict
	case shared.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case shared.KindOddsChanged, shared.KindSelectionSuspended, shared.KindWalletInactive,
		shared.KindCashoutNotAvailable:
		return http.StatusUnprocessableEntity
	case shared.KindInvalidStake, shared.KindMaxSelectionsExceeded, shared.KindMaxPotentialWinExceeded:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RespondDomainError translates a service error into the API envelope:
// business errors keep their kind as the error code and map to a meaningful
// status; anything else is an opaque 500.
func RespondDomainError(c *gin.Context, err error) {
	var be *shared.Error
	if errors.As(err, &be) {
		response := &Response{
			Error: &ErrorInfo{
				Code:    string(be.Kind),
				Message: be.Message,
				Details: be.Details,
			},
			CorrelationID: middleware.GetCorrelationID(c),
		}
		c.JSON(statusForKind(be.Kind), response)
		return
	}
	RespondInternalError(c)
}

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := totalItems / perPage
	if totalItems%perPage > 0 {
		totalPages++
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := &Response{
		Error:         &ErrorInfo{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(c),
	}
	c.JSON(statusCode, response)
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted sends a 202 Accepted response with data.
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
