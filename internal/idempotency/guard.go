// Package idempotency decides whether a keyed money-movement request is new,
// a replay of a completed attempt, or a conflicting reuse of its key.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
)

type Outcome int

const (
	Fresh Outcome = iota
	Replay
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Replay:
		return "replay"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Fingerprint is the subset of request parameters a replay must match.
type Fingerprint struct {
	Kind           domain.TransactionKind
	AccountID      *string
	CounterpartyID *string
	Amount         decimal.Decimal
}

func (f Fingerprint) Matches(t *domain.Transaction) bool {
	return f.Kind == t.Kind &&
		equalPtr(f.AccountID, t.AccountID) &&
		equalPtr(f.CounterpartyID, t.CounterpartyID) &&
		f.Amount.Equal(t.Amount)
}

type Decision struct {
	Outcome  Outcome
	Existing *domain.Transaction
}

type transactionLookup interface {
	GetByIdempotencyKey(ctx context.Context, q repository.Querier, key string) (*domain.Transaction, error)
}

type Guard struct {
	txns transactionLookup
}

func NewGuard(txns transactionLookup) *Guard {
	return &Guard{txns: txns}
}

// Resolve takes a transaction-scoped advisory lock on key and then looks it
// up, so concurrent holders of the same key serialize until the first commits
// or rolls back.
func (g *Guard) Resolve(ctx context.Context, tx *sql.Tx, key string, fp Fingerprint) (*Decision, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, fmt.Errorf("Resolve: advisory lock: %w", err)
	}

	d, err := g.decide(ctx, tx, key, fp)
	if err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	return d, nil
}

// Recheck re-reads key outside any transaction. Callers use it after their
// insert lost a unique-index race and their transaction was rolled back.
func (g *Guard) Recheck(ctx context.Context, key string, fp Fingerprint) (*Decision, error) {
	d, err := g.decide(ctx, nil, key, fp)
	if err != nil {
		return nil, fmt.Errorf("Recheck: %w", err)
	}
	if d.Outcome == Fresh {
		return nil, fmt.Errorf("Recheck: key %q vanished after duplicate insert: %w", key, domain.ErrInvariantViolation)
	}
	return d, nil
}

func (g *Guard) decide(ctx context.Context, q repository.Querier, key string, fp Fingerprint) (*Decision, error) {
	existing, err := g.txns.GetByIdempotencyKey(ctx, q, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &Decision{Outcome: Fresh}, nil
		}
		return nil, err
	}

	if !fp.Matches(existing) {
		return &Decision{Outcome: Conflict, Existing: existing}, nil
	}
	return &Decision{Outcome: Replay, Existing: existing}, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
