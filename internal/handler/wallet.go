package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type walletService interface {
	Deposit(ctx context.Context, req ledger.DepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req ledger.WithdrawRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (*domain.Transaction, error)
	OpenAccount(ctx context.Context, accountID string) (*domain.Account, error)
}

type WalletHandler struct {
	ledger walletService
}

func NewWalletHandler(l walletService) *WalletHandler {
	return &WalletHandler{ledger: l}
}

type movementRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	PaymentMethod  string          `json:"payment_method"`
	Description    string          `json:"description"`
}

func (r movementRequest) Validate() []FieldError {
	var errs []FieldError
	if err := domain.ValidateAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	return errs
}

type transferRequest struct {
	ReceiverID     string          `json:"receiver_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	Description    string          `json:"description"`
}

func (r transferRequest) Validate(senderID string) []FieldError {
	var errs []FieldError
	if r.ReceiverID == "" {
		errs = append(errs, FieldError{Field: "receiver_id", Message: "required"})
	} else if r.ReceiverID == senderID {
		errs = append(errs, FieldError{Field: "receiver_id", Message: "must differ from the sender"})
	}
	if err := domain.ValidateAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	return errs
}

type accountDTO struct {
	AccountID    string    `json:"account_id"`
	Balance      string    `json:"balance"`
	RewardPoints int64     `json:"reward_points"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		AccountID:    a.ID,
		Balance:      a.Balance.StringFixed(domain.MoneyScale),
		RewardPoints: a.RewardPoints,
		UpdatedAt:    a.UpdatedAt,
	}
}

// Get returns the caller's wallet, opening it on first access.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	a, err := h.ledger.OpenAccount(r.Context(), accountID)
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, toAccountDTO(a))
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.ledger.Deposit(r.Context(), ledger.DepositRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
	})
	h.respond(w, r, "deposit", t, err)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.ledger.Withdraw(r.Context(), ledger.WithdrawRequest{
		AccountID:      accountID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
	})
	h.respond(w, r, "withdraw", t, err)
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(accountID); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.ledger.Transfer(r.Context(), ledger.TransferRequest{
		SenderID:       accountID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Description:    req.Description,
	})
	h.respond(w, r, "transfer", t, err)
}

// respond writes 201 for a new transaction. A failed attempt that was
// recorded carries the stored transaction in the error details.
func (h *WalletHandler) respond(w http.ResponseWriter, r *http.Request, op string, t *domain.Transaction, err error) {
	if err != nil {
		logging.FromContext(r.Context()).Warn(op+" failed", "error", err)
		RespondDomainError(r.Context(), w, err, failureDetails(t))
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}
