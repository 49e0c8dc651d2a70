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

const (
	MessagePaySuccess       = "Payment successful"
	MessageUserNotFound     = "User not found"
	MessageInsufficientFund = "Insufficient funds"
	MessageInvalidAmount    = "Invalid amount"
	MessageInvalidRequest   = "Invalid request"
	MessageKeyConflict      = "Idempotency key already used for a different payment"
	MessagePayFailed        = "Payment could not be processed"
)

type PayRequest struct {
	Identifier     string
	Amount         decimal.Decimal
	IdempotencyKey string
	Description    string
}

// PayResult is the machine-readable outcome returned to integrated systems.
type PayResult struct {
	Success          bool
	TransactionID    int64
	BalanceRemaining decimal.Decimal
	PointsEarned     int64
	Message          string
}

// Pay charges the account registered under Identifier and credits one reward
// point per full 10000 paid. It never returns an error; every failure is
// reported through the result.
func (s *Service) Pay(ctx context.Context, req PayRequest) PayResult {
	log := logging.FromContext(ctx)

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return PayResult{Message: MessageInvalidAmount}
	}

	accountID, err := s.lookup.Lookup(ctx, req.Identifier)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("pay: account lookup failed", "identifier", req.Identifier, "error", err)
			return PayResult{Message: MessagePayFailed}
		}
		log.Info("pay: identifier not registered", "identifier", req.Identifier)
		return PayResult{Message: MessageUserNotFound}
	}

	t := &domain.Transaction{
		Kind:           domain.KindPay,
		AccountID:      &accountID,
		Amount:         req.Amount,
		Status:         domain.StatusCompleted,
		IdempotencyKey: optional(req.IdempotencyKey),
		PaymentMethod:  "integration",
		Description:    req.Description,
	}

	var balance decimal.Decimal
	out, err := s.run(ctx, movement{
		operation: "pay",
		txn:       t,
		apply: func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
			var err error
			if balance, err = s.debit(ctx, tx, accountID, req.Amount); err != nil {
				return err
			}
			t.PointsEarned = domain.PointsFor(req.Amount)
			if t.PointsEarned > 0 {
				if _, err := s.accounts.AdjustPoints(ctx, tx, accountID, t.PointsEarned); err != nil {
					return fmt.Errorf("credit points: %w", err)
				}
			}
			return nil
		},
	})

	result := s.payResult(ctx, accountID, out, err, balance)
	if out != nil && out.replayed {
		return result
	}

	if result.Success {
		log.Info("pay completed",
			"transaction_id", result.TransactionID,
			"account_id", accountID,
			"amount", req.Amount.StringFixed(domain.MoneyScale),
			"points_earned", result.PointsEarned,
		)
		s.notify(ctx, accountID, fmt.Sprintf("Payment of %s completed, %d points earned",
			req.Amount.StringFixed(domain.MoneyScale), result.PointsEarned))
	} else if result.Message == MessageInsufficientFund {
		s.notify(ctx, accountID, fmt.Sprintf("Payment of %s declined: insufficient funds",
			req.Amount.StringFixed(domain.MoneyScale)))
	}
	return result
}

func (s *Service) payResult(ctx context.Context, accountID string, out *outcome, err error, balance decimal.Decimal) PayResult {
	var result PayResult
	if out != nil && out.txn != nil {
		result.TransactionID = out.txn.ID
	}

	switch {
	case err == nil && out.replayed:
		// The balance reported on replay is the current one, not the one at first attempt.
		if acct, aerr := s.accounts.GetByID(ctx, accountID); aerr == nil {
			result.BalanceRemaining = acct.Balance
		}
		result.Success = true
		result.PointsEarned = out.txn.PointsEarned
		result.Message = MessagePaySuccess
	case err == nil:
		result.Success = true
		result.BalanceRemaining = balance
		result.PointsEarned = out.txn.PointsEarned
		result.Message = MessagePaySuccess
	case errors.Is(err, domain.ErrInsufficientFunds):
		if acct, aerr := s.accounts.GetByID(ctx, accountID); aerr == nil {
			result.BalanceRemaining = acct.Balance
		}
		result.Message = MessageInsufficientFund
	case errors.Is(err, domain.ErrAccountNotFound):
		result.Message = MessageUserNotFound
	case errors.Is(err, domain.ErrIdempotencyConflict):
		result.Message = MessageKeyConflict
	default:
		logging.FromContext(ctx).Error("pay failed", "account_id", accountID, "error", err)
		result.Message = MessagePayFailed
	}
	return result
}
