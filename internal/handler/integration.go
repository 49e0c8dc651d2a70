package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type integrationService interface {
	Pay(ctx context.Context, req ledger.PayRequest) ledger.PayResult
	Charge(ctx context.Context, req ledger.ChargeRequest) (*domain.Transaction, error)
}

// IntegrationHandler serves partner systems authenticated by API key.
type IntegrationHandler struct {
	ledger integrationService
}

func NewIntegrationHandler(l integrationService) *IntegrationHandler {
	return &IntegrationHandler{ledger: l}
}

type payRequest struct {
	Identifier     string          `json:"identifier"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	Description    string          `json:"description"`
}

type payResponse struct {
	Success          bool   `json:"success"`
	TransactionID    int64  `json:"transaction_id,omitempty"`
	BalanceRemaining string `json:"balance_remaining"`
	PointsEarned     int64  `json:"points_earned"`
	Message          string `json:"message"`
}

// Pay always answers 200 with the outcome in the body. Callers branch on
// success and message rather than on the status code.
func (h *IntegrationHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(r.Context()).Warn("pay body rejected", "error", err)
		RespondJSON(w, http.StatusOK, payResponse{
			BalanceRemaining: decimal.Zero.StringFixed(domain.MoneyScale),
			Message:          ledger.MessageInvalidRequest,
		})
		return
	}

	res := h.ledger.Pay(r.Context(), ledger.PayRequest{
		Identifier:     req.Identifier,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Description:    req.Description,
	})
	RespondJSON(w, http.StatusOK, payResponse{
		Success:          res.Success,
		TransactionID:    res.TransactionID,
		BalanceRemaining: res.BalanceRemaining.StringFixed(domain.MoneyScale),
		PointsEarned:     res.PointsEarned,
		Message:          res.Message,
	})
}

type chargeRequest struct {
	AccountID      string          `json:"account_id"`
	MerchantID     string          `json:"merchant_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	Description    string          `json:"description"`
}

func (r chargeRequest) Validate() []FieldError {
	var errs []FieldError
	if r.AccountID == "" {
		errs = append(errs, FieldError{Field: "account_id", Message: "required"})
	}
	if r.MerchantID != "" && r.MerchantID == r.AccountID {
		errs = append(errs, FieldError{Field: "merchant_id", Message: "must differ from account_id"})
	}
	if err := domain.ValidateAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	return errs
}

func (h *IntegrationHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.ledger.Charge(r.Context(), ledger.ChargeRequest{
		AccountID:      req.AccountID,
		MerchantID:     req.MerchantID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Description:    req.Description,
	})
	if err != nil {
		RespondDomainError(r.Context(), w, err, failureDetails(t))
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}
