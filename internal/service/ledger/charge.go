package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

// ChargeRequest is a partner charge against a wallet. With a MerchantID the
// funds move to the merchant's wallet, otherwise they leave the ledger.
type ChargeRequest struct {
	AccountID      string
	MerchantID     string
	Amount         decimal.Decimal
	IdempotencyKey string
	Description    string
}

func (s *Service) Charge(ctx context.Context, req ChargeRequest) (*domain.Transaction, error) {
	if req.MerchantID != "" {
		t, err := s.Transfer(ctx, TransferRequest{
			SenderID:       req.AccountID,
			ReceiverID:     req.MerchantID,
			Amount:         req.Amount,
			IdempotencyKey: req.IdempotencyKey,
			Description:    req.Description,
		})
		if err != nil {
			return t, fmt.Errorf("Charge: %w", err)
		}
		return t, nil
	}

	t, err := s.Withdraw(ctx, WithdrawRequest{
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		PaymentMethod:  "charge",
		Description:    req.Description,
	})
	if err != nil {
		return t, fmt.Errorf("Charge: %w", err)
	}
	return t, nil
}
