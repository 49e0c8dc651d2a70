package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

// AliasRepository maps external identifiers (phone numbers, handles, partner
// references) to wallet account ids.
type AliasRepository struct {
	db *sql.DB
}

func NewAliasRepository(db *sql.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

func (r *AliasRepository) Resolve(ctx context.Context, identifier string) (string, error) {
	var accountID string
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id FROM account_aliases WHERE identifier = $1`, identifier,
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("Resolve: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("Resolve: %w", err)
	}
	return accountID, nil
}

// Upsert points identifier at accountID, replacing any previous mapping. The
// account is opened first since wallets are created lazily.
func (r *AliasRepository) Upsert(ctx context.Context, identifier, accountID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Upsert: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`, accountID,
	)
	if err != nil {
		return fmt.Errorf("Upsert: open account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO account_aliases (identifier, account_id) VALUES ($1, $2)
		ON CONFLICT (identifier) DO UPDATE SET account_id = EXCLUDED.account_id`,
		identifier, accountID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("Upsert: %w", domain.ErrAccountNotFound)
		}
		return fmt.Errorf("Upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Upsert: commit: %w", err)
	}
	return nil
}
