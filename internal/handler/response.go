package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps ledger errors to envelopes. details is attached as
// is, which lets callers return the stored transaction of a failed attempt.
func RespondDomainError(ctx context.Context, w http.ResponseWriter, err error, details any) {
	RespondAppError(w, domainAppError(ctx, err), details)
}

func domainAppError(ctx context.Context, err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrPriorAttemptFailed):
		return ErrPriorAttemptFailed
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return ErrIdempotencyConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrSelfTransfer):
		return ErrSelfTransfer
	case errors.Is(err, domain.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidPrecision):
		return ErrInvalidPrecision
	case errors.Is(err, domain.ErrAmountTooLarge):
		return ErrAmountTooLarge
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	case errors.Is(err, domain.ErrPaymentTerminal):
		return ErrPaymentTerminal
	case errors.Is(err, domain.ErrInvariantViolation):
		logging.FromContext(ctx).Error("ledger invariant violated", "error", err)
		return ErrInvariantViolation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrServiceDegraded
	default:
		logging.FromContext(ctx).Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}

// idempotencyKey prefers the Idempotency-Key header over a key in the body.
func idempotencyKey(r *http.Request, fromBody string) string {
	if k := r.Header.Get("Idempotency-Key"); k != "" {
		return k
	}
	return fromBody
}
