// Package commerce holds the error taxonomy shared by the pricing, refund
// and reporting services. Callers match with errors.Is; the HTTP layer maps
// each family to a status code.
package commerce

import (
	"errors"
	"fmt"
)

var (
	// Validation failures. Surfaced immediately, never retried.
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrInvalidTicketType = errors.New("ticket type is not available for sale")
	ErrInvalidRange      = errors.New("date range end precedes start")
	ErrValidation        = errors.New("validation failed")

	// Redemption code failures, each carrying its specific sub-reason.
	ErrCodeExhausted     = errors.New("redemption code has no remaining uses")
	ErrCodeExpired       = errors.New("redemption code is outside its validity window")
	ErrCodeNotApplicable = errors.New("redemption code does not apply to this ticket type")

	// ErrOverRefund means a requested refund quantity exceeds what is still
	// unrefunded on an item. The caller is expected to retry with a smaller
	// quantity.
	ErrOverRefund = errors.New("refund quantity exceeds unrefunded quantity")

	// ErrNoFeeSchedule is a server-side misconfiguration, not a user error.
	// It should be alarmed on, never silently defaulted.
	ErrNoFeeSchedule = errors.New("no fee schedule configured for organization")

	// ErrConflict means concurrent activity changed the data between
	// validation and commit. The refund reconciler retries it once before
	// surfacing.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrReconciliation means a computed total failed its reconciliation
	// invariant. This is a fatal internal error; totals are never clamped or
	// rounded to absorb an inconsistency.
	ErrReconciliation = errors.New("order total failed reconciliation")
)

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// IsUserError reports whether the error is caller-correctable rather than a
// server-side fault.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidTicketType) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrCodeExhausted) ||
		errors.Is(err, ErrCodeExpired) ||
		errors.Is(err, ErrCodeNotApplicable) ||
		errors.Is(err, ErrOverRefund)
}
