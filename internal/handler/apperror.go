package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidAPIKey    = &AppError{http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrServiceDegraded  = &AppError{http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Ledger store unavailable, retry with the same idempotency key"}

	ErrInsufficientFunds   = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrSelfTransfer        = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same account"}
	ErrAccountNotFound     = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidPrecision    = &AppError{http.StatusBadRequest, "INVALID_PRECISION", "Amount must have at most two decimal places"}
	ErrAmountTooLarge      = &AppError{http.StatusBadRequest, "AMOUNT_TOO_LARGE", "Amount exceeds the largest supported value"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrPriorAttemptFailed  = &AppError{http.StatusUnprocessableEntity, "PRIOR_ATTEMPT_FAILED", "A previous attempt with this idempotency key failed; use a new key to retry"}
	ErrPaymentTerminal     = &AppError{http.StatusConflict, "PAYMENT_TERMINAL", "Payment is already in a terminal state"}
	ErrInvariantViolation  = &AppError{http.StatusInternalServerError, "LEDGER_INVARIANT_VIOLATION", "Operation aborted to protect ledger consistency"}
)
