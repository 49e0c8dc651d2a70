package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/metrics"
)

type PaymentRequestInput struct {
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
	QRPayload      string
	// AccountID optionally links the request to the wallet credited on confirmation.
	AccountID string
}

// CreatePaymentRequest records a pending inbound payment. Nothing is credited
// until ConfirmPayment.
func (s *Service) CreatePaymentRequest(ctx context.Context, in PaymentRequestInput) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("CreatePaymentRequest: %w", err)
	}

	t := &domain.Transaction{
		Kind:           domain.KindPaymentRequest,
		AccountID:      optional(in.AccountID),
		Amount:         in.Amount,
		Status:         domain.StatusPending,
		IdempotencyKey: optional(in.IdempotencyKey),
		PaymentMethod:  "qr",
		Description:    in.Description,
		QRPayload:      optional(in.QRPayload),
	}

	out, err := s.run(ctx, movement{
		operation: "create_payment_request",
		txn:       t,
		apply: func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
			if t.AccountID == nil {
				return nil
			}
			_, err := s.accounts.GetOrCreate(ctx, tx, *t.AccountID)
			return err
		},
	})
	if err != nil {
		return txnOf(out), fmt.Errorf("CreatePaymentRequest: %w", err)
	}

	if !out.replayed {
		log.Info("payment request created",
			"transaction_id", out.txn.ID,
			"amount", in.Amount.StringFixed(domain.MoneyScale),
			"linked_account", in.AccountID,
		)
	}
	return out.txn, nil
}

// ConfirmPayment completes the pending payment request identified by key and
// credits its linked account, if any. Confirming a completed request returns
// it unchanged.
func (s *Service) ConfirmPayment(ctx context.Context, key, providerReference string) (*domain.Transaction, error) {
	start := time.Now()
	t, confirmed, err := s.confirmPayment(ctx, key, providerReference)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailure
	case !confirmed:
		outcome = metrics.OutcomeReplay
	}
	s.metrics.ObserveOperation("confirm_payment", outcome, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("ConfirmPayment: %w", err)
	}
	if confirmed && t.AccountID != nil {
		s.notify(ctx, *t.AccountID, fmt.Sprintf("Payment of %s received", t.Amount.StringFixed(domain.MoneyScale)))
	}
	return t, nil
}

func (s *Service) confirmPayment(ctx context.Context, key, providerReference string) (*domain.Transaction, bool, error) {
	log := logging.FromContext(ctx)

	if key == "" {
		return nil, false, fmt.Errorf("idempotency key: %w", domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := s.txns.GetByIdempotencyKeyForUpdate(ctx, tx, key)
	if err != nil {
		return nil, false, err
	}
	if t.Kind != domain.KindPaymentRequest {
		return nil, false, fmt.Errorf("key %q is a %s: %w", key, t.Kind, domain.ErrNotFound)
	}
	if t.Status == domain.StatusCompleted {
		log.Info("payment already confirmed", "transaction_id", t.ID, "idempotency_key", key)
		return t, false, nil
	}

	ref := optional(providerReference)
	if err := s.txns.MarkCompleted(ctx, tx, t.ID, ref); err != nil {
		return nil, false, err
	}

	if t.AccountID != nil {
		if _, err := s.accounts.LockForUpdate(ctx, tx, *t.AccountID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, false, fmt.Errorf("linked account %s: %w", *t.AccountID, domain.ErrAccountNotFound)
			}
			return nil, false, err
		}
		if _, err := s.accounts.AdjustBalance(ctx, tx, *t.AccountID, t.Amount); err != nil {
			return nil, false, fmt.Errorf("credit linked account: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	t.Status = domain.StatusCompleted
	if ref != nil {
		t.ProviderReference = ref
	}
	t.UpdatedAt = time.Now().UTC()

	log.Info("payment confirmed",
		"transaction_id", t.ID,
		"idempotency_key", key,
		"provider_reference", providerReference,
		"credited", t.AccountID != nil,
	)
	return t, true, nil
}
