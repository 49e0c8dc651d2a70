package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type DepositRequest struct {
	AccountID      string
	Amount         decimal.Decimal
	IdempotencyKey string
	PaymentMethod  string
	Description    string
}

// Deposit credits AccountID, creating the account on first use.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if req.AccountID == "" {
		return nil, fmt.Errorf("Deposit: account id: %w", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	t := &domain.Transaction{
		Kind:           domain.KindDeposit,
		AccountID:      &req.AccountID,
		Amount:         req.Amount,
		Status:         domain.StatusCompleted,
		IdempotencyKey: optional(req.IdempotencyKey),
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
	}

	var balance decimal.Decimal
	out, err := s.run(ctx, movement{
		operation: "deposit",
		txn:       t,
		apply: func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
			if _, err := s.accounts.GetOrCreate(ctx, tx, req.AccountID); err != nil {
				return err
			}
			if _, err := s.accounts.LockForUpdate(ctx, tx, req.AccountID); err != nil {
				return err
			}
			var err error
			balance, err = s.accounts.AdjustBalance(ctx, tx, req.AccountID, req.Amount)
			return err
		},
	})
	if err != nil {
		return txnOf(out), fmt.Errorf("Deposit: %w", err)
	}
	if out.replayed {
		return out.txn, nil
	}

	log.Info("deposit completed",
		"transaction_id", out.txn.ID,
		"account_id", req.AccountID,
		"amount", req.Amount.StringFixed(domain.MoneyScale),
		"balance", balance.StringFixed(domain.MoneyScale),
	)
	s.notify(ctx, req.AccountID, fmt.Sprintf("Deposit of %s received", req.Amount.StringFixed(domain.MoneyScale)))

	return out.txn, nil
}

func txnOf(out *outcome) *domain.Transaction {
	if out == nil {
		return nil
	}
	return out.txn
}
