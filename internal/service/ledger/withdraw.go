package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type WithdrawRequest struct {
	AccountID      string
	Amount         decimal.Decimal
	IdempotencyKey string
	PaymentMethod  string
	Description    string
}

// Withdraw debits an existing account. A key-bearing attempt rejected for
// insufficient funds is recorded as failed and returned with the error.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if req.AccountID == "" {
		return nil, fmt.Errorf("Withdraw: account id: %w", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	t := &domain.Transaction{
		Kind:           domain.KindWithdraw,
		AccountID:      &req.AccountID,
		Amount:         req.Amount,
		Status:         domain.StatusCompleted,
		IdempotencyKey: optional(req.IdempotencyKey),
		PaymentMethod:  req.PaymentMethod,
		Description:    req.Description,
	}

	var balance decimal.Decimal
	out, err := s.run(ctx, movement{
		operation: "withdraw",
		txn:       t,
		apply: func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
			var err error
			balance, err = s.debit(ctx, tx, req.AccountID, req.Amount)
			return err
		},
	})
	if err != nil {
		return txnOf(out), fmt.Errorf("Withdraw: %w", err)
	}
	if out.replayed {
		return out.txn, nil
	}

	log.Info("withdrawal completed",
		"transaction_id", out.txn.ID,
		"account_id", req.AccountID,
		"amount", req.Amount.StringFixed(domain.MoneyScale),
		"balance", balance.StringFixed(domain.MoneyScale),
	)
	s.notify(ctx, req.AccountID, fmt.Sprintf("Withdrawal of %s completed", req.Amount.StringFixed(domain.MoneyScale)))

	return out.txn, nil
}

// debit locks accountID, checks funds and applies -amount. The sufficiency
// check precedes the write.
func (s *Service) debit(ctx context.Context, tx *sql.Tx, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	acct, err := s.accounts.LockForUpdate(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("debit: %s: %w", accountID, domain.ErrAccountNotFound)
		}
		return decimal.Zero, fmt.Errorf("debit: %w", err)
	}

	if acct.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("debit: %s has %s, needs %s: %w",
			accountID, acct.Balance.StringFixed(domain.MoneyScale), amount.StringFixed(domain.MoneyScale),
			domain.ErrInsufficientFunds)
	}

	balance, err := s.accounts.AdjustBalance(ctx, tx, accountID, amount.Neg())
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit: %w", err)
	}
	return balance, nil
}
