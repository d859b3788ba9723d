package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Failure kinds. Every error a service returns on purpose unwraps to exactly
// one of these; anything else is an infrastructure failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

// Error is a typed domain failure with a human-readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errors returned by the floor services.
var (
	ErrTableNotFound        = newError(ErrNotFound, "table not found")
	ErrTabNotFound          = newError(ErrNotFound, "tab not found")
	ErrOrderNotFound        = newError(ErrNotFound, "order not found")
	ErrMenuItemNotFound     = newError(ErrNotFound, "menu item not found")
	ErrCancellationNotFound = newError(ErrNotFound, "cancellation request not found")
	ErrReturnNotFound       = newError(ErrNotFound, "return request not found")
	ErrWaiterNotFound       = newError(ErrNotFound, "waiter not found")

	ErrTabNotOpen           = newError(ErrInvalidState, "tab is not open")
	ErrTableHasOpenTabs     = newError(ErrInvalidState, "table still has open tabs")
	ErrTableNotOccupied     = newError(ErrInvalidState, "a table is only occupied by opening a tab")
	ErrTableNotPaid         = newError(ErrInvalidState, "no tab of this occupancy was paid")
	ErrMenuItemUnavailable  = newError(ErrInvalidState, "menu item is unavailable")
	ErrInvalidTransition    = newError(ErrInvalidState, "order status transition not allowed")
	ErrCancellationResolved = newError(ErrInvalidState, "cancellation request already resolved")
	ErrImageStoreDisabled   = newError(ErrInvalidState, "image storage is not configured")

	ErrInvalidQuantity             = newError(ErrValidation, "quantity must be > 0")
	ErrInvalidOrderStatus          = newError(ErrValidation, "invalid order status")
	ErrNothingToUpdate             = newError(ErrValidation, "nothing to update")
	ErrNoOrderLines                = newError(ErrValidation, "at least one order line is required")
	ErrInvalidPaymentMethod        = newError(ErrValidation, "invalid payment_method")
	ErrInvalidPaidAmount           = newError(ErrValidation, "paid_amount must be >= 0")
	ErrInvalidTableNumber          = newError(ErrValidation, "table number must be > 0")
	ErrInvalidCapacity             = newError(ErrValidation, "capacity must be > 0")
	ErrInvalidTableStatus          = newError(ErrValidation, "invalid table status")
	ErrInvalidCancellationCategory = newError(ErrValidation, "invalid cancellation category")
	ErrInvalidResolution           = newError(ErrValidation, "status must be APPROVED or REJECTED")
	ErrInvalidApprovalPIN          = newError(ErrValidation, "approval PIN does not match")
	ErrInvalidReturnCategory       = newError(ErrValidation, "invalid return category")
	ErrInvalidReturnSubcategory    = newError(ErrValidation, "subcategory does not belong to category")
	ErrInvalidReturnSource         = newError(ErrValidation, "source type must be COMANDA or MESA")
	ErrInvalidReturnStatus         = newError(ErrValidation, "status must be APPROVED, REJECTED or RESOLVED")
	ErrInvalidImage                = newError(ErrValidation, "image could not be decoded")

	ErrDuplicateTableNumber      = newError(ErrConflict, "table number already exists")
	ErrPendingCancellationExists = newError(ErrConflict, "tab already has a pending cancellation request")
)

// lookupErr maps a missing row to the given domain error and wraps anything else.
func lookupErr(err error, missing error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return missing
	}
	return fmt.Errorf("%s: %w", what, err)
}

// isUniqueViolation checks for a pg unique violation (23505) on constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
