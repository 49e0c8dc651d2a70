package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/provider"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, key, providerReference string) (*domain.Transaction, error)
}

// WebhookHandler lets the payment provider confirm requests directly. The
// body must be signed with HMAC-SHA256 over the shared secret.
type WebhookHandler struct {
	payments paymentConfirmer
	secret   string
}

func NewWebhookHandler(payments paymentConfirmer, secret string) *WebhookHandler {
	return &WebhookHandler{payments: payments, secret: secret}
}

type webhookPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
	ProviderRef    string `json:"provider_ref,omitempty"`
}

func (p webhookPayload) validate() []FieldError {
	var errs []FieldError

	if p.IdempotencyKey == "" {
		errs = append(errs, FieldError{Field: "idempotency_key", Message: "required"})
	}

	if p.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	} else if p.Status != "completed" && p.Status != "failed" {
		errs = append(errs, FieldError{Field: "status", Message: "must be completed or failed"})
	}

	return errs
}

func (h *WebhookHandler) ReceiveProviderWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get(provider.SignatureHeader)
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	// Failed provider attempts leave the request pending so it can be retried.
	if payload.Status == "failed" {
		log.Info("provider reported failed payment", "idempotency_key", payload.IdempotencyKey)
		RespondSuccess(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	t, err := h.payments.ConfirmPayment(r.Context(), payload.IdempotencyKey, payload.ProviderRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("webhook for unknown payment request", "idempotency_key", payload.IdempotencyKey)
		}
		RespondDomainError(r.Context(), w, err, nil)
		return
	}

	log.Info("webhook confirmed payment request",
		"transaction_id", t.ID,
		"idempotency_key", payload.IdempotencyKey,
		"provider_ref", payload.ProviderRef,
	)
	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := provider.Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
