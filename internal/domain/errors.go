package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrAccountNotFound         = errors.New("account not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrSelfTransfer            = errors.New("cannot transfer to same account")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInvalidPrecision        = errors.New("amount has more than two decimal places")
	ErrAmountTooLarge          = errors.New("amount exceeds the largest storable value")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvariantViolation      = errors.New("ledger invariant violated")
	ErrIdempotencyConflict     = errors.New("idempotency key reused with different parameters")
	ErrPriorAttemptFailed      = errors.New("prior attempt with this idempotency key failed")
	ErrPaymentTerminal         = errors.New("payment already in terminal state")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// IsValidation reports whether err belongs to the input-validation family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPrecision) ||
		errors.Is(err, ErrAmountTooLarge) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrSelfTransfer)
}

// FailureReasonError maps a persisted failure reason back to its sentinel.
func FailureReasonError(reason string) error {
	switch reason {
	case FailureInsufficientFunds:
		return ErrInsufficientFunds
	default:
		return errors.New(reason)
	}
}
