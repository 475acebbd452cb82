package domain

import (
	"errors" // errors.As for classification
	"fmt"    // Error formatting
)

// ErrorKind groups errors by how callers must react to them
type ErrorKind string

// Error kinds
const (
	KindValidation  ErrorKind = "validation"  // Bad input, zero side effects
	KindState       ErrorKind = "state"       // Draw in the wrong phase, aborted before any ledger mutation
	KindConsistency ErrorKind = "consistency" // Balance would go negative, zero side effects
	KindPersistence ErrorKind = "persistence" // Store unreachable or write rejected
	KindPartial     ErrorKind = "partial"     // Some units of a batch failed
)

// Error is a classified failure with a stable machine-readable code
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Sentinel errors
var (
	ErrInvalidGroup      = newError(KindValidation, "INVALID_GROUP", "invalid group")
	ErrInvalidFigure     = newError(KindValidation, "INVALID_FIGURE", "figure must be between 1 and 36")
	ErrInvalidAmount     = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrEmptyBatch        = newError(KindValidation, "EMPTY_BATCH", "no wagers in request")
	ErrBatchTooLarge     = newError(KindValidation, "BATCH_TOO_LARGE", "too many wagers in one request")
	ErrDrawGroupMismatch = newError(KindValidation, "DRAW_GROUP_MISMATCH", "draw belongs to another group")
	ErrInvalidOperation  = newError(KindValidation, "INVALID_OPERATION", "unknown draw operation")
	ErrInvalidNote       = newError(KindValidation, "INVALID_NOTE", "note is required")
	ErrInsufficientFunds = newError(KindConsistency, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrNoDraw            = newError(KindState, "NO_OPEN_OR_SCHEDULED_DRAW", "no open or scheduled draw for group")
	ErrDrawNotFound      = newError(KindState, "DRAW_NOT_FOUND", "draw not found")
	ErrDrawClosed        = newError(KindState, "DRAW_NOT_ACCEPTING_BETS", "draw is not accepting bets")
	ErrDrawState         = newError(KindState, "DRAW_STATE", "draw is not in the required phase")
	ErrFigureConflict    = newError(KindState, "WINNING_FIGURE_CONFLICT", "draw already has a different winning figure")
	ErrAlreadyPaid       = newError(KindState, "PAYOUT_ALREADY_APPLIED", "bet was already paid out")
	ErrBetPersist        = newError(KindPersistence, "BET_PERSIST_FAILURE", "failed to persist bet")
	ErrLedgerWrite       = newError(KindPersistence, "LEDGER_WRITE_FAILURE", "failed to write ledger")
	ErrPayoutPartial     = newError(KindPartial, "PAYOUT_PARTIAL_FAILURE", "some payouts failed")
)

// AsError extracts the classified error from err's chain
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err, persistence when unclassified
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindPersistence
}

// BatchError reports a wager batch aborted midway. Bets in Applied stay committed.
type BatchError struct {
	Cause        error // Classified failure of the aborted item
	Index        int   // Position of the failing wager in the request
	Applied      []Bet // Wagers committed before the failure
	BalanceAfter int64 // Balance once the failing item was compensated
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("wager %d failed after %d applied: %v", e.Index, len(e.Applied), e.Cause)
}

func (e *BatchError) Unwrap() error { return e.Cause }
