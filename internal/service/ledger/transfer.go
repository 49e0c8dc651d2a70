package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type TransferRequest struct {
	SenderID       string
	ReceiverID     string
	Amount         decimal.Decimal
	IdempotencyKey string
	Description    string
}

// Transfer moves Amount from SenderID to ReceiverID. Both accounts are created
// if absent and locked in ascending id order regardless of direction.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if req.SenderID == "" || req.ReceiverID == "" {
		return nil, fmt.Errorf("Transfer: account id: %w", domain.ErrInvalidRequest)
	}
	if req.SenderID == req.ReceiverID {
		return nil, fmt.Errorf("Transfer: %w", domain.ErrSelfTransfer)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}

	t := &domain.Transaction{
		Kind:           domain.KindTransfer,
		AccountID:      &req.SenderID,
		CounterpartyID: &req.ReceiverID,
		Amount:         req.Amount,
		Status:         domain.StatusCompleted,
		IdempotencyKey: optional(req.IdempotencyKey),
		PaymentMethod:  "wallet",
		Description:    req.Description,
	}

	var senderBalance, receiverBalance decimal.Decimal
	out, err := s.run(ctx, movement{
		operation: "transfer",
		txn:       t,
		apply: func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
			locked, err := lockAccountsInOrder(ctx, tx, s.accounts, req.SenderID, req.ReceiverID)
			if err != nil {
				return err
			}

			sender := locked[req.SenderID]
			if sender.Balance.LessThan(req.Amount) {
				return fmt.Errorf("%s has %s, needs %s: %w",
					sender.ID, sender.Balance.StringFixed(domain.MoneyScale), req.Amount.StringFixed(domain.MoneyScale),
					domain.ErrInsufficientFunds)
			}

			if senderBalance, err = s.accounts.AdjustBalance(ctx, tx, req.SenderID, req.Amount.Neg()); err != nil {
				return fmt.Errorf("debit sender: %w", err)
			}
			if receiverBalance, err = s.accounts.AdjustBalance(ctx, tx, req.ReceiverID, req.Amount); err != nil {
				return fmt.Errorf("credit receiver: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return txnOf(out), fmt.Errorf("Transfer: %w", err)
	}
	if out.replayed {
		return out.txn, nil
	}

	log.Info("transfer completed",
		"transaction_id", out.txn.ID,
		"sender_account", req.SenderID,
		"receiver_account", req.ReceiverID,
		"amount", req.Amount.StringFixed(domain.MoneyScale),
		"sender_balance", senderBalance.StringFixed(domain.MoneyScale),
		"receiver_balance", receiverBalance.StringFixed(domain.MoneyScale),
	)

	amount := req.Amount.StringFixed(domain.MoneyScale)
	s.notify(ctx, req.SenderID, fmt.Sprintf("You sent %s to %s", amount, req.ReceiverID))
	s.notify(ctx, req.ReceiverID, fmt.Sprintf("You received %s from %s", amount, req.SenderID))

	return out.txn, nil
}

// lockAccountsInOrder creates any missing account and row-locks all of them in
// ascending id order. Every multi-account operation must lock through here.
func lockAccountsInOrder(ctx context.Context, tx *sql.Tx, accounts accountRepo, ids ...string) (map[string]*domain.Account, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	result := make(map[string]*domain.Account, len(ids))
	for _, id := range sorted {
		if _, ok := result[id]; ok {
			continue
		}
		if _, err := accounts.GetOrCreate(ctx, tx, id); err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		acct, err := accounts.LockForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}
