package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/provider"
)

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	callbackURL := os.Getenv("CALLBACK_URL")
	if callbackURL == "" {
		callbackURL = "http://localhost:8080/webhooks/provider"
	}
	client := provider.NewClient(callbackURL, os.Getenv("WEBHOOK_SECRET"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	// POST /settle {"idempotency_key": "..."} reports the payment request as paid.
	mux.HandleFunc("POST /settle", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IdempotencyKey string `json:"idempotency_key"`
			Status         string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdempotencyKey == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "idempotency_key required"})
			return
		}
		if req.Status == "" {
			req.Status = "completed"
		}

		conf := provider.Confirmation{
			IdempotencyKey: req.IdempotencyKey,
			Status:         req.Status,
			ProviderRef:    "mock-" + uuid.NewString(),
		}
		if err := client.Deliver(r.Context(), conf); err != nil {
			slog.Error("webhook delivery failed", "idempotency_key", req.IdempotencyKey, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, conf)
	})

	slog.Info("mock provider started", "addr", ":8081", "callback_url", callbackURL)
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
