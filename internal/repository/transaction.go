package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const transactionColumns = `transaction_id, kind, account_id, counterparty_id, amount, status,
	idempotency_key, payment_method, description, provider_reference, qr_payload,
	failure_reason, points_earned, created_at, updated_at`

// TransactionRepository is the append-only transaction log. Only the status,
// provider_reference and updated_at columns of a payment request change after insert.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts t and fills in its ID and timestamps.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO transactions (
			kind, account_id, counterparty_id, amount, status,
			idempotency_key, payment_method, description, provider_reference, qr_payload,
			failure_reason, points_earned
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING transaction_id, created_at, updated_at`,
		t.Kind, t.AccountID, t.CounterpartyID, t.Amount, t.Status,
		t.IdempotencyKey, t.PaymentMethod, t.Description, t.ProviderReference, t.QRPayload,
		t.FailureReason, t.PointsEarned,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateIdempotencyKey)
		}
		if isCheckViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrInvariantViolation)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetByIdempotencyKey reads through q so the lookup can run inside the
// transaction that holds the key's advisory lock.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, q Querier, key string) (*domain.Transaction, error) {
	if q == nil {
		q = r.db
	}
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByIdempotencyKeyForUpdate(ctx context.Context, tx *sql.Tx, key string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1 FOR UPDATE`, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKeyForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKeyForUpdate: %w", err)
	}
	return t, nil
}

// ListByAccount returns transactions where accountID is either side, newest
// first, plus the total number of matching rows.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, kind domain.TransactionKind, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		WHERE (account_id = $1 OR counterparty_id = $1) AND ($2::text = '' OR kind = $2::text)`,
		accountID, string(kind),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE (account_id = $1 OR counterparty_id = $1) AND ($2::text = '' OR kind = $2::text)
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT $3 OFFSET $4`,
		accountID, string(kind), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByAccount: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByAccount: rows: %w", err)
	}
	return txns, total, nil
}

// MarkCompleted moves a pending payment request to completed. A row that is
// no longer pending yields ErrPaymentTerminal.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, tx *sql.Tx, id int64, providerReference *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, provider_reference = COALESCE($2, provider_reference), updated_at = now()
		WHERE transaction_id = $3 AND status = $4`,
		domain.StatusCompleted, providerReference, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkCompleted: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkCompleted: %w", domain.ErrPaymentTerminal)
	}
	return nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.Kind, &t.AccountID, &t.CounterpartyID, &t.Amount, &t.Status,
		&t.IdempotencyKey, &t.PaymentMethod, &t.Description, &t.ProviderReference, &t.QRPayload,
		&t.FailureReason, &t.PointsEarned, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
