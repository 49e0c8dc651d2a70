// Package provider delivers signed payment confirmations to the ledger's
// provider webhook. The mock provider uses it to stand in for a real PSP.
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

const SignatureHeader = "X-Webhook-Signature"

type Client struct {
	callbackURL string
	secret      string
	httpClient  *http.Client
}

func NewClient(callbackURL, secret string) *Client {
	return &Client{
		callbackURL: callbackURL,
		secret:      secret,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type Confirmation struct {
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"`
	ProviderRef    string `json:"provider_ref,omitempty"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) Deliver(ctx context.Context, conf Confirmation) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("Deliver: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Deliver: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(SignatureHeader, Sign(body, c.secret))

	start := time.Now()
	log.Info("provider webhook sent", "idempotency_key", conf.IdempotencyKey, "status", conf.Status)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("Deliver: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider webhook acknowledged",
		"http_status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Deliver: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
