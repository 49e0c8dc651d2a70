// Package ledger is the money-movement engine. Every operation runs in one
// database transaction that resolves the idempotency key, locks the affected
// account rows, mutates balances and appends to the transaction log.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/idempotency"
	"github.com/josh-kwaku/wallet-ledger/internal/notify"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type accountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetOrCreate(ctx context.Context, q repository.Querier, id string) (*domain.Account, error)
	LockForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Account, error)
	AdjustBalance(ctx context.Context, tx *sql.Tx, id string, delta decimal.Decimal) (decimal.Decimal, error)
	AdjustPoints(ctx context.Context, tx *sql.Tx, id string, delta int64) (int64, error)
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByIdempotencyKeyForUpdate(ctx context.Context, tx *sql.Tx, key string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, kind domain.TransactionKind, limit, offset int) ([]domain.Transaction, int, error)
	MarkCompleted(ctx context.Context, tx *sql.Tx, id int64, providerReference *string) error
}

type keyGuard interface {
	Resolve(ctx context.Context, tx *sql.Tx, key string, fp idempotency.Fingerprint) (*idempotency.Decision, error)
	Recheck(ctx context.Context, key string, fp idempotency.Fingerprint) (*idempotency.Decision, error)
}

type accountLookup interface {
	Lookup(ctx context.Context, identifier string) (string, error)
}

type recorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	ObserveNotification(outcome string)
}

type Service struct {
	db       *sql.DB
	accounts accountRepo
	txns     transactionRepo
	guard    keyGuard
	lookup   accountLookup
	notifier notify.Notifier
	metrics  recorder
}

func NewService(
	db *sql.DB,
	accounts accountRepo,
	txns transactionRepo,
	guard keyGuard,
	lookup accountLookup,
	notifier notify.Notifier,
	metrics recorder,
) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		db:       db,
		accounts: accounts,
		txns:     txns,
		guard:    guard,
		lookup:   lookup,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("GetAccount: %w", domain.ErrInvalidRequest)
	}
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return a, nil
}

// OpenAccount creates accountID with zero balance if it does not exist yet.
func (s *Service) OpenAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("OpenAccount: %w", domain.ErrInvalidRequest)
	}
	a, err := s.accounts.GetOrCreate(ctx, nil, accountID)
	if err != nil {
		return nil, fmt.Errorf("OpenAccount: %w", err)
	}
	return a, nil
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// GetTransactionForAccount hides transactions the account is not party to.
func (s *Service) GetTransactionForAccount(ctx context.Context, id int64, accountID string) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransactionForAccount: %w", err)
	}
	if !t.Involves(accountID) {
		return nil, fmt.Errorf("GetTransactionForAccount: %w", domain.ErrNotFound)
	}
	return t, nil
}

// GetPaymentRequest returns the payment request with the given id. Other
// transaction kinds are reported as not found.
func (s *Service) GetPaymentRequest(ctx context.Context, id int64) (*domain.Transaction, error) {
	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentRequest: %w", err)
	}
	if t.Kind != domain.KindPaymentRequest {
		return nil, fmt.Errorf("GetPaymentRequest: %w", domain.ErrNotFound)
	}
	return t, nil
}

type TransactionPage struct {
	Transactions []domain.Transaction
	Total        int
	Limit        int
	Offset       int
}

// ListTransactions pages through an account's history. An empty kind lists
// every kind.
func (s *Service) ListTransactions(ctx context.Context, accountID string, kind domain.TransactionKind, limit, offset int) (*TransactionPage, error) {
	if accountID == "" {
		return nil, fmt.Errorf("ListTransactions: %w", domain.ErrInvalidRequest)
	}
	if kind != "" && !kind.IsValid() {
		return nil, fmt.Errorf("ListTransactions: kind %q: %w", kind, domain.ErrInvalidRequest)
	}
	limit, offset = clampPage(limit, offset)

	txns, total, err := s.txns.ListByAccount(ctx, accountID, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return &TransactionPage{Transactions: txns, Total: total, Limit: limit, Offset: offset}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveNotification(string)                     {}
