package handler

import (
	"time"

	"github.com/sportsbook-betting-core/internal/domain/bet"
	"github.com/sportsbook-betting-core/internal/domain/settlement"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

// CreateWalletRequest opens a wallet for a user.
type CreateWalletRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// MovementRequest covers deposits and withdrawals. ReferenceID identifies the
// external payment this movement corresponds to.
type MovementRequest struct {
	Amount      string `json:"amount" binding:"required"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// WalletResponse represents a wallet in API responses. Monetary fields are
// decimal strings.
type WalletResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Currency         string `json:"currency"`
	Balance          string `json:"balance"`
	LockedBalance    string `json:"locked_balance"`
	AvailableBalance string `json:"available_balance"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// TransactionResponse represents one audit record in API responses.
type TransactionResponse struct {
	ID            string `json:"id"`
	WalletID      string `json:"wallet_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	ReferenceID   string `json:"reference_id,omitempty"`
	ReferenceType string `json:"reference_type,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// PlaceBetRequest places a single or accumulator bet. Selections carry the
// odds the user saw; placement re-validates them.
type PlaceBetRequest struct {
	UserID     string                `json:"user_id" binding:"required,uuid"`
	Type       string                `json:"type" binding:"required,oneof=single accumulator"`
	Stake      string                `json:"stake" binding:"required"`
	Selections []BetSelectionRequest `json:"selections" binding:"required,min=1,dive"`
}

// BetSelectionRequest is one leg of a bet placement request.
type BetSelectionRequest struct {
	EventID      string `json:"event_id" binding:"required,uuid"`
	MarketID     string `json:"market_id" binding:"required,uuid"`
	SelectionID  string `json:"selection_id" binding:"required,uuid"`
	ExpectedOdds string `json:"expected_odds" binding:"required"`
}

// BetResponse represents a bet in API responses.
type BetResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	Type          string                 `json:"type"`
	Stake         string                 `json:"stake"`
	TotalOdds     string                 `json:"total_odds"`
	PotentialWin  string                 `json:"potential_win"`
	Status        string                 `json:"status"`
	SettledAmount string                 `json:"settled_amount,omitempty"`
	CashoutAmount string                 `json:"cashout_amount,omitempty"`
	Selections    []BetSelectionResponse `json:"selections"`
	SettledAt     string                 `json:"settled_at,omitempty"`
	CreatedAt     string                 `json:"created_at"`
}

// BetSelectionResponse is one leg of a bet in API responses.
type BetSelectionResponse struct {
	EventID         string `json:"event_id"`
	MarketID        string `json:"market_id"`
	SelectionID     string `json:"selection_id"`
	Side            string `json:"side"`
	OddsAtPlacement string `json:"odds_at_placement"`
	Status          string `json:"status"`
}

// CashoutQuoteResponse quotes the current cash-out value of a bet.
type CashoutQuoteResponse struct {
	BetID     string `json:"bet_id"`
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

// SettleEventRequest asks for a whole event to settle from its final score.
type SettleEventRequest struct {
	HomeScore int `json:"home_score" binding:"min=0"`
	AwayScore int `json:"away_score" binding:"min=0"`
}

// SettleMarketRequest asks for one market to settle from explicit results.
type SettleMarketRequest struct {
	Results []SelectionResultRequest `json:"results" binding:"required,min=1,dive"`
}

// SelectionResultRequest is one selection outcome in a settle-market request.
type SelectionResultRequest struct {
	SelectionID string `json:"selection_id" binding:"required,uuid"`
	Result      string `json:"result" binding:"required,oneof=winner loser void push"`
}

// VoidMarketRequest voids a market with a reason.
type VoidMarketRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SettlementAcceptedResponse acknowledges an enqueued settlement request.
type SettlementAcceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// SettlementRecordResponse represents a settlement record in API responses.
type SettlementRecordResponse struct {
	ID         string                      `json:"id"`
	MarketID   string                      `json:"market_id"`
	EventID    string                      `json:"event_id,omitempty"`
	Kind       string                      `json:"kind"`
	Status     string                      `json:"status"`
	VoidReason string                      `json:"void_reason,omitempty"`
	Outcomes   []SelectionOutcomeResponse  `json:"outcomes"`
	Failures   []SelectionFailureResponse  `json:"failures,omitempty"`
	CreatedAt  string                      `json:"created_at"`
	UpdatedAt  string                      `json:"updated_at"`
}

// SelectionOutcomeResponse is one applied selection result.
type SelectionOutcomeResponse struct {
	SelectionID string `json:"selection_id"`
	Result      string `json:"result"`
}

// SelectionFailureResponse is one failed selection with its reason.
type SelectionFailureResponse struct {
	SelectionID string `json:"selection_id"`
	Result      string `json:"result"`
	Reason      string `json:"reason"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:               w.ID.String(),
		UserID:           w.UserID.String(),
		Currency:         w.Currency,
		Balance:          w.Balance.StringFixed(2),
		LockedBalance:    w.LockedBalance.StringFixed(2),
		AvailableBalance: w.AvailableBalance().StringFixed(2),
		Status:           string(w.Status),
		CreatedAt:        w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        w.UpdatedAt.Format(time.RFC3339),
	}
}

func mapTransactionToResponse(tx *wallet.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID.String(),
		WalletID:      tx.WalletID.String(),
		Type:          string(tx.Type),
		Amount:        tx.Amount.StringFixed(2),
		BalanceBefore: tx.BalanceBefore.StringFixed(2),
		BalanceAfter:  tx.BalanceAfter.StringFixed(2),
		ReferenceID:   tx.ReferenceID,
		ReferenceType: tx.ReferenceType,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
}

func mapBetToResponse(b *bet.Bet) BetResponse {
	resp := BetResponse{
		ID:           b.ID.String(),
		UserID:       b.UserID.String(),
		Type:         string(b.Type),
		Stake:        b.Stake.StringFixed(2),
		TotalOdds:    b.TotalOdds.String(),
		PotentialWin: b.PotentialWin.StringFixed(2),
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
	if b.SettledAmount != nil {
		resp.SettledAmount = b.SettledAmount.StringFixed(2)
	}
	if b.CashoutAmount != nil {
		resp.CashoutAmount = b.CashoutAmount.StringFixed(2)
	}
	if b.SettledAt != nil {
		resp.SettledAt = b.SettledAt.Format(time.RFC3339)
	}
	for _, sel := range b.Selections {
		resp.Selections = append(resp.Selections, BetSelectionResponse{
			EventID:         sel.EventID.String(),
			MarketID:        sel.MarketID.String(),
			SelectionID:     sel.SelectionID.String(),
			Side:            string(sel.Side),
			OddsAtPlacement: sel.OddsAtPlacement.String(),
			Status:          string(sel.Status),
		})
	}
	return resp
}

func mapSettlementToResponse(r *settlement.Record) SettlementRecordResponse {
	resp := SettlementRecordResponse{
		ID:         r.ID.String(),
		MarketID:   r.MarketID.String(),
		Kind:       string(r.Kind),
		Status:     string(r.Status),
		VoidReason: r.VoidReason,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
	if r.EventID != nil {
		resp.EventID = r.EventID.String()
	}
	for _, o := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, SelectionOutcomeResponse{
			SelectionID: o.SelectionID.String(),
			Result:      string(o.Result),
		})
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, SelectionFailureResponse{
			SelectionID: f.SelectionID.String(),
			Result:      string(f.Result),
			Reason:      f.Reason,
		})
	}
	return resp
}
