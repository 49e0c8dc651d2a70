package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type transactionReader interface {
	GetTransactionForAccount(ctx context.Context, id int64, accountID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, kind domain.TransactionKind, limit, offset int) (*ledger.TransactionPage, error)
}

type TransactionHandler struct {
	ledger transactionReader
}

func NewTransactionHandler(l transactionReader) *TransactionHandler {
	return &TransactionHandler{ledger: l}
}

type transactionDTO struct {
	ID                int64     `json:"transaction_id"`
	Kind              string    `json:"kind"`
	Status            string    `json:"status"`
	AccountID         *string   `json:"account_id"`
	CounterpartyID    *string   `json:"counterparty_id,omitempty"`
	Amount            string    `json:"amount"`
	IdempotencyKey    *string   `json:"idempotency_key,omitempty"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	Description       string    `json:"description,omitempty"`
	ProviderReference *string   `json:"provider_reference,omitempty"`
	QRPayload         *string   `json:"qr_payload,omitempty"`
	FailureReason     *string   `json:"failure_reason,omitempty"`
	PointsEarned      int64     `json:"points_earned,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// failureDetails is the error details for a rejected write. It is untyped
// nil when no transaction was recorded so the details key stays absent.
func failureDetails(t *domain.Transaction) any {
	if t == nil {
		return nil
	}
	return toTransactionDTO(t)
}

func toTransactionDTO(t *domain.Transaction) *transactionDTO {
	if t == nil {
		return nil
	}
	return &transactionDTO{
		ID:                t.ID,
		Kind:              string(t.Kind),
		Status:            string(t.Status),
		AccountID:         t.AccountID,
		CounterpartyID:    t.CounterpartyID,
		Amount:            t.Amount.StringFixed(domain.MoneyScale),
		IdempotencyKey:    t.IdempotencyKey,
		PaymentMethod:     t.PaymentMethod,
		Description:       t.Description,
		ProviderReference: t.ProviderReference,
		QRPayload:         t.QRPayload,
		FailureReason:     t.FailureReason,
		PointsEarned:      t.PointsEarned,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

type transactionPageDTO struct {
	Transactions []*transactionDTO `json:"transactions"`
	Total        int               `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var fields []FieldError
	limit, err := queryInt(r, "limit")
	if err != nil {
		fields = append(fields, FieldError{Field: "limit", Message: "must be an integer"})
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		fields = append(fields, FieldError{Field: "offset", Message: "must be an integer"})
	}
	kind := domain.TransactionKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		fields = append(fields, FieldError{Field: "kind", Message: "unknown transaction kind"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	page, err := h.ledger.ListTransactions(r.Context(), accountID, kind, limit, offset)
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}

	dto := transactionPageDTO{
		Transactions: make([]*transactionDTO, 0, len(page.Transactions)),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for i := range page.Transactions {
		dto.Transactions = append(dto.Transactions, toTransactionDTO(&page.Transactions[i]))
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	t, err := h.ledger.GetTransactionForAccount(r.Context(), id, accountID)
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
