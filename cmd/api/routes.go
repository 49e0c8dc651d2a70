package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/wallet-ledger/internal/config"
	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/middleware"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type aliasRegistrar interface {
	Register(ctx context.Context, identifier, accountID string) error
}

type routerDeps struct {
	cfg            *config.Config
	ledger         *ledger.Service
	directory      aliasRegistrar
	db             pinger
	notifierHealth pinger
	metrics        http.Handler
}

func newRouter(d routerDeps) http.Handler {
	wallet := handler.NewWalletHandler(d.ledger)
	transactions := handler.NewTransactionHandler(d.ledger)
	payments := handler.NewPaymentHandler(d.ledger)
	integrations := handler.NewIntegrationHandler(d.ledger)
	aliases := handler.NewAliasHandler(d.directory)
	health := handler.NewHealthHandler(d.db, d.notifierHealth)

	user := middleware.Auth(d.cfg.JWTSecret)
	partner := middleware.APIKey(d.cfg.IntegrationAPIKeyHash)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /ready", health.Readiness)
	if d.metrics != nil {
		mux.Handle("GET /metrics", d.metrics)
	}

	mux.Handle("GET /api/v1/wallet", user(http.HandlerFunc(wallet.Get)))
	mux.Handle("POST /api/v1/wallet/deposit", user(http.HandlerFunc(wallet.Deposit)))
	mux.Handle("POST /api/v1/wallet/withdraw", user(http.HandlerFunc(wallet.Withdraw)))
	mux.Handle("POST /api/v1/wallet/transfer", user(http.HandlerFunc(wallet.Transfer)))
	mux.Handle("PUT /api/v1/wallet/aliases", user(http.HandlerFunc(aliases.Register)))
	mux.Handle("GET /api/v1/transactions", user(http.HandlerFunc(transactions.List)))
	mux.Handle("GET /api/v1/transactions/{id}", user(http.HandlerFunc(transactions.Get)))

	mux.Handle("POST /api/v1/integrations/pay", partner(http.HandlerFunc(integrations.Pay)))
	mux.Handle("POST /api/v1/integrations/charge", partner(http.HandlerFunc(integrations.Charge)))
	mux.Handle("POST /api/v1/payments", partner(http.HandlerFunc(payments.Create)))
	mux.Handle("POST /api/v1/payments/confirm", partner(http.HandlerFunc(payments.Confirm)))
	mux.Handle("GET /api/v1/payments/{id}", partner(http.HandlerFunc(payments.Get)))
	// The QR image is shown to payers, so it is not behind the partner key.
	mux.HandleFunc("GET /api/v1/payments/{id}/qr", payments.QR)

	if d.cfg.WebhookSecret != "" {
		webhooks := handler.NewWebhookHandler(d.ledger, d.cfg.WebhookSecret)
		mux.HandleFunc("POST /webhooks/provider", webhooks.ReceiveProviderWebhook)
	} else {
		slog.Info("WEBHOOK_SECRET not set, provider webhook disabled")
	}

	return middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))
}
