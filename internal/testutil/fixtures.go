package testutil

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
)

func SeedAccount(t *testing.T, db *sql.DB, accountID, balance string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO accounts (account_id, balance) VALUES ($1, $2)`,
		accountID, decimal.RequireFromString(balance),
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", accountID, err)
	}
}

func SeedAlias(t *testing.T, db *sql.DB, identifier, accountID string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO account_aliases (identifier, account_id) VALUES ($1, $2)`,
		identifier, accountID,
	)
	if err != nil {
		t.Fatalf("seed alias %s -> %s: %v", identifier, accountID, err)
	}
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID string) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE account_id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetRewardPoints(t *testing.T, db *sql.DB, accountID string) int64 {
	t.Helper()

	var points int64
	err := db.QueryRow(`SELECT reward_points FROM accounts WHERE account_id = $1`, accountID).Scan(&points)
	if err != nil {
		t.Fatalf("get reward points %s: %v", accountID, err)
	}
	return points
}

func CountTransactions(t *testing.T, db *sql.DB, accountID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1 OR counterparty_id = $1`, accountID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for %s: %v", accountID, err)
	}
	return count
}

func CountByKey(t *testing.T, db *sql.DB, key string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE idempotency_key = $1`, key).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for key %s: %v", key, err)
	}
	return count
}

func TotalBalance(t *testing.T, db *sql.DB) decimal.Decimal {
	t.Helper()

	var total decimal.Decimal
	if err := db.QueryRow(`SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	return total
}
