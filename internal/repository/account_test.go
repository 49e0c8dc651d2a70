package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

func newMockAccounts(t *testing.T) (*AccountRepository, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAccountRepository(db), db, mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"account_id", "balance", "reward_points", "created_at", "updated_at"})
}

func TestAccountRepository_GetByID(t *testing.T) {
	repo, _, mock := newMockAccounts(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id").
		WithArgs("acct-1").
		WillReturnRows(accountRows().AddRow("acct-1", "125.50", int64(3), now, now))

	acct, err := repo.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acct.ID)
	assert.True(t, acct.Balance.Equal(decimal.RequireFromString("125.50")))
	assert.Equal(t, int64(3), acct.RewardPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	repo, _, mock := newMockAccounts(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountRepository_GetOrCreate(t *testing.T) {
	repo, _, mock := newMockAccounts(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("acct-new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id").
		WithArgs("acct-new").
		WillReturnRows(accountRows().AddRow("acct-new", "0.00", int64(0), now, now))

	acct, err := repo.GetOrCreate(context.Background(), nil, "acct-new")
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_LockForUpdate(t *testing.T) {
	repo, db, mock := newMockAccounts(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id = (.+) FOR UPDATE").
		WithArgs("acct-1").
		WillReturnRows(accountRows().AddRow("acct-1", "10.00", int64(0), now, now))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id = (.+) FOR UPDATE").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	acct, err := repo.LockForUpdate(context.Background(), tx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acct.ID)

	_, err = repo.LockForUpdate(context.Background(), tx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_AdjustBalance(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    string
		wantErr error
	}{
		{
			name: "credit returns new balance",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE accounts SET balance").
					WithArgs(sqlmock.AnyArg(), "acct-1").
					WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("150.00"))
			},
			want: "150.00",
		},
		{
			name: "overdraft hits check constraint",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE accounts SET balance").
					WithArgs(sqlmock.AnyArg(), "acct-1").
					WillReturnError(&pq.Error{Code: pqCheckViolation})
			},
			wantErr: domain.ErrInvariantViolation,
		},
		{
			name: "credit past column width",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE accounts SET balance").
					WithArgs(sqlmock.AnyArg(), "acct-1").
					WillReturnError(&pq.Error{Code: pqNumericOverflow})
			},
			wantErr: domain.ErrAmountTooLarge,
		},
		{
			name: "missing account",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE accounts SET balance").
					WithArgs(sqlmock.AnyArg(), "acct-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, db, mock := newMockAccounts(t)
			mock.ExpectBegin()
			tc.setup(mock)

			tx, err := db.Begin()
			require.NoError(t, err)

			got, err := repo.AdjustBalance(context.Background(), tx, "acct-1", decimal.NewFromInt(50))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)))
		})
	}
}

func TestAccountRepository_AdjustPoints(t *testing.T) {
	repo, db, mock := newMockAccounts(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET reward_points = GREATEST").
		WithArgs(int64(2), "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"reward_points"}).AddRow(int64(7)))

	tx, err := db.Begin()
	require.NoError(t, err)

	points, err := repo.AdjustPoints(context.Background(), tx, "acct-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), points)
}
