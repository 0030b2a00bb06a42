// Package shared holds types that cross component boundaries: the business
// error taxonomy, domain event payloads, and the Kafka message contracts
// exchanged between the gateway and the settlement processor.
package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a business failure. Retryability is a property of the
// kind, not of the call site that produced it.
type ErrorKind string

const (
	KindInsufficientFunds       ErrorKind = "INSUFFICIENT_FUNDS"
	KindWalletExists            ErrorKind = "WALLET_EXISTS"
	KindWalletInactive          ErrorKind = "WALLET_INACTIVE"
	KindWalletNotFound          ErrorKind = "WALLET_NOT_FOUND"
	KindLockNotFound            ErrorKind = "LOCK_NOT_FOUND"
	KindLockInactive            ErrorKind = "LOCK_INACTIVE"
	KindOddsChanged             ErrorKind = "ODDS_CHANGED"
	KindSelectionSuspended      ErrorKind = "SELECTION_SUSPENDED"
	KindSelectionNotFound       ErrorKind = "SELECTION_NOT_FOUND"
	KindMaxSelectionsExceeded   ErrorKind = "MAX_SELECTIONS_EXCEEDED"
	KindDuplicateEvent          ErrorKind = "DUPLICATE_EVENT"
	KindMaxPotentialWinExceeded ErrorKind = "MAX_POTENTIAL_WIN_EXCEEDED"
	KindInvalidStake            ErrorKind = "INVALID_STAKE"
	KindBetAlreadySettled       ErrorKind = "BET_ALREADY_SETTLED"
	KindBetNotFound             ErrorKind = "BET_NOT_FOUND"
	KindCashoutNotAvailable     ErrorKind = "CASHOUT_NOT_AVAILABLE"
	KindMarketNotFound          ErrorKind = "MARKET_NOT_FOUND"
	KindEventNotFound           ErrorKind = "EVENT_NOT_FOUND"
	KindSettlementNotFound      ErrorKind = "SETTLEMENT_NOT_FOUND"
	KindTransactionNotFound     ErrorKind = "TRANSACTION_NOT_FOUND"
)

// retryableKinds lists the kinds a caller may safely retry after adjusting
// its input (re-quoting odds, for instance). Everything else is either a
// client input error or a duplicate-delivery signal.
var retryableKinds = map[ErrorKind]bool{
	KindOddsChanged: true,
}

// Error is the single business error type of the core. Infrastructure
// failures are wrapped with fmt.Errorf and never carry a kind.
type Error struct {
	Kind    ErrorKind
	Message string
	// Details carries structured data for the caller (current odds on an
	// ODDS_CHANGED, the offending event id on a DUPLICATE_EVENT, ...).
	Details map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the caller may retry the operation.
func (e *Error) Retryable() bool {
	return retryableKinds[e.Kind]
}

// NewError creates a business error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorWithDetails creates a business error carrying structured data.
func NewErrorWithDetails(kind ErrorKind, message string, details map[string]string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// IsKind reports whether err is a business error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// KindOf extracts the kind of a business error, or "" for infrastructure
// errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
