package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const accountColumns = `account_id, balance, reward_points, created_at, updated_at`

// AccountRepository is the ledger store. Balance and point mutations take the
// caller's transaction and assume the row is already locked by LockForUpdate.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// GetOrCreate returns the account, inserting a zero-balance row first if absent.
// q may be the pool or an open transaction.
func (r *AccountRepository) GetOrCreate(ctx context.Context, q Querier, id string) (*domain.Account, error) {
	if q == nil {
		q = r.db
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: insert: %w", err)
	}

	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("LockForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("LockForUpdate: %w", err)
	}
	return a, nil
}

// AdjustBalance applies a signed delta and returns the new balance. The
// balance >= 0 check constraint turns an overdraft into ErrInvariantViolation
// and a credit past the column width into ErrAmountTooLarge.
func (r *AccountRepository) AdjustBalance(ctx context.Context, tx *sql.Tx, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = now()
		WHERE account_id = $2 RETURNING balance`,
		delta, id,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("AdjustBalance: %w", domain.ErrNotFound)
		}
		if isCheckViolation(err) {
			return decimal.Zero, fmt.Errorf("AdjustBalance: %s by %s: %w", id, delta, domain.ErrInvariantViolation)
		}
		if isNumericOverflow(err) {
			return decimal.Zero, fmt.Errorf("AdjustBalance: %s by %s: %w", id, delta, domain.ErrAmountTooLarge)
		}
		return decimal.Zero, fmt.Errorf("AdjustBalance: %w", err)
	}
	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("AdjustBalance: %s: %w", id, domain.ErrInvariantViolation)
	}
	return balance, nil
}

// AdjustPoints applies a signed delta to reward points, flooring at zero.
func (r *AccountRepository) AdjustPoints(ctx context.Context, tx *sql.Tx, id string, delta int64) (int64, error) {
	var points int64
	err := tx.QueryRowContext(ctx,
		`UPDATE accounts SET reward_points = GREATEST(reward_points + $1, 0), updated_at = now()
		WHERE account_id = $2 RETURNING reward_points`,
		delta, id,
	).Scan(&points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("AdjustPoints: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("AdjustPoints: %w", err)
	}
	return points, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.ID, &a.Balance, &a.RewardPoints, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
