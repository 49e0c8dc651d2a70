package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/idempotency"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/metrics"
)

// movement is one money-movement attempt. apply locks and mutates accounts
// for txn; it must return ErrInsufficientFunds before its first write so the
// attempt can still be recorded as failed in the same transaction.
type movement struct {
	operation string
	txn       *domain.Transaction
	apply     func(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type outcome struct {
	txn      *domain.Transaction
	replayed bool
}

func (s *Service) run(ctx context.Context, m movement) (*outcome, error) {
	start := time.Now()
	out, err := s.runTx(ctx, m)

	result := metrics.OutcomeSuccess
	switch {
	case err != nil:
		result = metrics.OutcomeFailure
	case out.replayed:
		result = metrics.OutcomeReplay
	}
	s.metrics.ObserveOperation(m.operation, result, time.Since(start))

	return out, err
}

func (s *Service) runTx(ctx context.Context, m movement) (*outcome, error) {
	key := ""
	if m.txn.IdempotencyKey != nil {
		key = *m.txn.IdempotencyKey
	}
	fp := fingerprint(m.txn)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if key != "" {
		d, err := s.guard.Resolve(ctx, tx, key, fp)
		if err != nil {
			return nil, err
		}
		if d.Outcome != idempotency.Fresh {
			return settle(ctx, m.operation, key, d)
		}
	}

	if err := m.apply(ctx, tx, m.txn); err != nil {
		if key != "" && errors.Is(err, domain.ErrInsufficientFunds) {
			return s.recordFailure(ctx, tx, m.txn, err)
		}
		return nil, err
	}

	if err := s.txns.Create(ctx, tx, m.txn); err != nil {
		if key != "" && errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			tx.Rollback()
			d, rerr := s.guard.Recheck(ctx, key, fp)
			if rerr != nil {
				return nil, rerr
			}
			return settle(ctx, m.operation, key, d)
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &outcome{txn: m.txn}, nil
}

// recordFailure commits a failed row for a key-bearing attempt so a replay of
// the key reports the same failure without re-running the debit.
func (s *Service) recordFailure(ctx context.Context, tx *sql.Tx, t *domain.Transaction, cause error) (*outcome, error) {
	reason := domain.FailureInsufficientFunds
	t.Status = domain.StatusFailed
	t.FailureReason = &reason
	t.PointsEarned = 0

	if err := s.txns.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("record failure: commit: %w", err)
	}
	return &outcome{txn: t}, cause
}

func settle(ctx context.Context, operation, key string, d *idempotency.Decision) (*outcome, error) {
	log := logging.FromContext(ctx)

	if d.Outcome == idempotency.Conflict {
		log.Warn("idempotency key reused with different parameters",
			"operation", operation,
			"idempotency_key", key,
			"transaction_id", d.Existing.ID,
		)
		return nil, fmt.Errorf("key %q: %w", key, domain.ErrIdempotencyConflict)
	}

	log.Info("idempotent replay",
		"operation", operation,
		"idempotency_key", key,
		"transaction_id", d.Existing.ID,
		"status", d.Existing.Status,
	)

	out := &outcome{txn: d.Existing, replayed: true}
	if d.Existing.Status == domain.StatusFailed {
		reason := ""
		if d.Existing.FailureReason != nil {
			reason = *d.Existing.FailureReason
		}
		return out, fmt.Errorf("%w: %w", domain.ErrPriorAttemptFailed, domain.FailureReasonError(reason))
	}
	return out, nil
}

func fingerprint(t *domain.Transaction) idempotency.Fingerprint {
	return idempotency.Fingerprint{
		Kind:           t.Kind,
		AccountID:      t.AccountID,
		CounterpartyID: t.CounterpartyID,
		Amount:         t.Amount,
	}
}

// notify is best effort; the ledger outcome is already committed.
func (s *Service) notify(ctx context.Context, accountID, message string) {
	if accountID == "" {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), accountID, message); err != nil {
		logging.FromContext(ctx).Warn("notification dropped",
			"account_id", accountID,
			"error", err,
		)
		s.metrics.ObserveNotification(metrics.OutcomeDropped)
		return
	}
	s.metrics.ObserveNotification(metrics.OutcomeSuccess)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
