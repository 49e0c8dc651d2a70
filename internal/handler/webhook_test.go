package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const testWebhookSecret = "test-secret-key"

type mockConfirmer struct {
	calls  int
	key    string
	ref    string
	result *domain.Transaction
	err    error
}

func (m *mockConfirmer) ConfirmPayment(_ context.Context, key, providerReference string) (*domain.Transaction, error) {
	m.calls++
	m.key = key
	m.ref = providerReference
	return m.result, m.err
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(status string) string {
	b, _ := json.Marshal(webhookPayload{
		IdempotencyKey: "pr-1",
		Status:         status,
		ProviderRef:    "prov-77",
	})
	return string(b)
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"idempotency_key":"abc"}`,
			signature: signPayload(`{"idempotency_key":"abc"}`, testWebhookSecret),
			secret:    testWebhookSecret,
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"idempotency_key":"abc"}`,
			signature: "deadbeef",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      `{"idempotency_key":"abc"}`,
			signature: "",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"idempotency_key":"abc"}`,
			signature: signPayload(`{"idempotency_key":"abc"}`, "other-secret"),
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "unconfigured secret",
			body:      `{"idempotency_key":"abc"}`,
			signature: signPayload(`{"idempotency_key":"abc"}`, ""),
			secret:    "",
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := verifyHMAC([]byte(tc.body), tc.signature, tc.secret)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveProviderWebhook(t *testing.T) {
	confirmed := &domain.Transaction{ID: 9, Kind: domain.KindPaymentRequest, Status: domain.StatusCompleted, Amount: decimal.NewFromInt(50)}

	tests := []struct {
		name       string
		body       string
		setupSig   func(body string) string
		confirmErr error
		wantStatus int
		wantCode   string
		wantCalls  int
	}{
		{
			name:       "valid signed webhook",
			body:       webhookBody("completed"),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "failed status is acknowledged without confirming",
			body:       webhookBody("failed"),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature header",
			body:       webhookBody("completed"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "invalid HMAC signature",
			body:       webhookBody("completed"),
			setupSig:   func(_ string) string { return "deadbeefdeadbeef" },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "invalid JSON body",
			body:       "not-json",
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing required fields",
			body:       `{"status":"completed"}`,
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown payment request",
			body:       webhookBody("completed"),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			confirmErr: fmt.Errorf("ConfirmPayment: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
			wantCalls:  1,
		},
		{
			name:       "store error returns 500",
			body:       webhookBody("completed"),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			confirmErr: fmt.Errorf("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantCalls:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockConfirmer{result: confirmed, err: tc.confirmErr}
			h := NewWebhookHandler(svc, testWebhookSecret)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(tc.body))
			if tc.setupSig != nil {
				req.Header.Set("X-Webhook-Signature", tc.setupSig(tc.body))
			}
			rr := httptest.NewRecorder()

			h.ReceiveProviderWebhook(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Equal(t, tc.wantCalls, svc.calls)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			if tc.wantCode == "" {
				assert.True(t, resp.Success)
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestReceiveProviderWebhook_PassesKeyAndReference(t *testing.T) {
	svc := &mockConfirmer{result: &domain.Transaction{ID: 1}}
	h := NewWebhookHandler(svc, testWebhookSecret)

	body := webhookBody("completed")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signPayload(body, testWebhookSecret))
	h.ReceiveProviderWebhook(httptest.NewRecorder(), req)

	assert.Equal(t, "pr-1", svc.key)
	assert.Equal(t, "prov-77", svc.ref)
}
