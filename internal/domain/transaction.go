package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit        TransactionKind = "deposit"
	KindWithdraw       TransactionKind = "withdraw"
	KindTransfer       TransactionKind = "transfer"
	KindPaymentRequest TransactionKind = "payment_request"
	KindPay            TransactionKind = "pay"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransfer, KindPaymentRequest, KindPay:
		return true
	default:
		return false
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// FailureReason values persisted on failed key-bearing attempts.
const (
	FailureInsufficientFunds = "insufficient_funds"
)

type Transaction struct {
	ID                int64
	Kind              TransactionKind
	AccountID         *string
	CounterpartyID    *string
	Amount            decimal.Decimal
	Status            TransactionStatus
	IdempotencyKey    *string
	PaymentMethod     string
	Description       string
	ProviderReference *string
	QRPayload         *string
	FailureReason     *string
	PointsEarned      int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Involves reports whether accountID is either party of the transaction.
func (t *Transaction) Involves(accountID string) bool {
	return (t.AccountID != nil && *t.AccountID == accountID) ||
		(t.CounterpartyID != nil && *t.CounterpartyID == accountID)
}
