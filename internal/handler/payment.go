package handler

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

const qrImageSize = 256

type paymentService interface {
	CreatePaymentRequest(ctx context.Context, in ledger.PaymentRequestInput) (*domain.Transaction, error)
	ConfirmPayment(ctx context.Context, key, providerReference string) (*domain.Transaction, error)
	GetPaymentRequest(ctx context.Context, id int64) (*domain.Transaction, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
	QRPayload      string          `json:"qr_payload"`
	AccountID      string          `json:"account_id"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if err := domain.ValidateAmount(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	return errs
}

type confirmPaymentRequest struct {
	IdempotencyKey    string `json:"idempotency_key"`
	ProviderReference string `json:"provider_reference"`
}

func (r confirmPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.IdempotencyKey == "" {
		errs = append(errs, FieldError{Field: "idempotency_key", Message: "required"})
	}
	return errs
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.payments.CreatePaymentRequest(r.Context(), ledger.PaymentRequestInput{
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		QRPayload:      req.QRPayload,
		AccountID:      req.AccountID,
	})
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}

// Confirm completes a pending request. Confirming an already completed
// request returns it with 200.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.payments.ConfirmPayment(r.Context(), req.IdempotencyKey, req.ProviderReference)
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

// QR renders the request's payload as a PNG QR code.
func (h *PaymentHandler) QR(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}

	img, err := renderQR(qrContent(t))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to render qr code", "transaction_id", t.ID, "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *PaymentHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Transaction, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return nil, false
	}
	t, err := h.payments.GetPaymentRequest(r.Context(), id)
	if err != nil {
		RespondDomainError(r.Context(), w, err, nil)
		return nil, false
	}
	return t, true
}

// qrContent falls back to a reference built from the request when no
// payload was supplied at creation.
func qrContent(t *domain.Transaction) string {
	if t.QRPayload != nil && *t.QRPayload != "" {
		return *t.QRPayload
	}
	return fmt.Sprintf("wallet-ledger:payment_request:%d:%s", t.ID, t.Amount.StringFixed(domain.MoneyScale))
}

func renderQR(content string) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("renderQR: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrImageSize)); err != nil {
		return nil, fmt.Errorf("renderQR: encode: %w", err)
	}
	return buf.Bytes(), nil
}
