package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/directory"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/idempotency"
	"github.com/josh-kwaku/wallet-ledger/internal/metrics"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
	"github.com/josh-kwaku/wallet-ledger/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, accountID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, accountID+": "+message)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func setupLedger(t *testing.T, db *sql.DB, n *recordingNotifier) *ledger.Service {
	t.Helper()
	txns := repository.NewTransactionRepository(db)
	if n == nil {
		n = &recordingNotifier{}
	}
	return ledger.NewService(
		db,
		repository.NewAccountRepository(db),
		txns,
		idempotency.NewGuard(txns),
		directory.New(repository.NewAliasRepository(db)),
		n,
		metrics.NewCollector(),
	)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertBalance(t *testing.T, db *sql.DB, accountID, want string) {
	t.Helper()
	got := testutil.GetAccountBalance(t, db, accountID)
	assert.True(t, got.Equal(dec(want)), "balance of %s: got %s, want %s", accountID, got, want)
}

func TestDeposit_CreatesAccountAndCredits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	txn, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("100.00"), IdempotencyKey: "dep-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, txn.Status)
	assert.Equal(t, domain.KindDeposit, txn.Kind)
	assert.NotZero(t, txn.ID)
	assertBalance(t, db, "A", "100.00")
}

func TestScenario_TransferReplay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("100.00"), IdempotencyKey: "dep-1"})
	require.NoError(t, err)

	req := ledger.TransferRequest{SenderID: "A", ReceiverID: "B", Amount: dec("30.00"), IdempotencyKey: "tx-1"}
	first, err := svc.Transfer(ctx, req)
	require.NoError(t, err)
	assertBalance(t, db, "A", "70.00")
	assertBalance(t, db, "B", "30.00")

	second, err := svc.Transfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assertBalance(t, db, "A", "70.00")
	assertBalance(t, db, "B", "30.00")
	assert.Equal(t, 1, testutil.CountByKey(t, db, "tx-1"))
}

func TestIdempotentReplay_EveryKeyedOperation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "acct-42", "50000.00")
	testutil.SeedAlias(t, db, "acct-42", "acct-42")

	ops := map[string]func() (int64, error){
		"deposit": func() (int64, error) {
			txn, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "acct-42", Amount: dec("10"), IdempotencyKey: "r-dep"})
			if err != nil {
				return 0, err
			}
			return txn.ID, nil
		},
		"withdraw": func() (int64, error) {
			txn, err := svc.Withdraw(ctx, ledger.WithdrawRequest{AccountID: "acct-42", Amount: dec("10"), IdempotencyKey: "r-wd"})
			if err != nil {
				return 0, err
			}
			return txn.ID, nil
		},
		"transfer": func() (int64, error) {
			txn, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: "acct-42", ReceiverID: "acct-7", Amount: dec("10"), IdempotencyKey: "r-tr"})
			if err != nil {
				return 0, err
			}
			return txn.ID, nil
		},
		"pay": func() (int64, error) {
			res := svc.Pay(ctx, ledger.PayRequest{Identifier: "acct-42", Amount: dec("10"), IdempotencyKey: "r-pay"})
			if !res.Success {
				return 0, errors.New(res.Message)
			}
			return res.TransactionID, nil
		},
		"payment request": func() (int64, error) {
			txn, err := svc.CreatePaymentRequest(ctx, ledger.PaymentRequestInput{Amount: dec("10"), IdempotencyKey: "r-pr"})
			if err != nil {
				return 0, err
			}
			return txn.ID, nil
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			firstID, err := op()
			require.NoError(t, err)
			before := testutil.TotalBalance(t, db)

			secondID, err := op()
			require.NoError(t, err)
			assert.Equal(t, firstID, secondID)
			assert.True(t, before.Equal(testutil.TotalBalance(t, db)), "replay must not move money")
		})
	}
}

func TestScenario_WithdrawInsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "70.00")

	_, err := svc.Withdraw(ctx, ledger.WithdrawRequest{AccountID: "A", Amount: dec("1000.00")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assertBalance(t, db, "A", "70.00")
	assert.Equal(t, 0, testutil.CountTransactions(t, db, "A"))
}

func TestWithdraw_MissingAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)

	_, err := svc.Withdraw(context.Background(), ledger.WithdrawRequest{AccountID: "ghost", Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestFailedAttempt_ReplaySurfacesPriorFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "5.00")

	req := ledger.WithdrawRequest{AccountID: "A", Amount: dec("10.00"), IdempotencyKey: "wd-fail"}
	first, err := svc.Withdraw(ctx, req)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, first)
	assert.Equal(t, domain.StatusFailed, first.Status)

	// Funds arrive, but the key stays bound to the failed attempt.
	_, err = svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("100.00")})
	require.NoError(t, err)

	second, err := svc.Withdraw(ctx, req)
	require.ErrorIs(t, err, domain.ErrPriorAttemptFailed)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assertBalance(t, db, "A", "105.00")
}

func TestIdempotencyConflict_DifferentAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "100.00")

	_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: "A", ReceiverID: "B", Amount: dec("30"), IdempotencyKey: "tx-c"})
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: "A", ReceiverID: "B", Amount: dec("40"), IdempotencyKey: "tx-c"})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	_, err = svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("30"), IdempotencyKey: "tx-c"})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	assertBalance(t, db, "A", "70.00")
	assertBalance(t, db, "B", "30.00")
}

func TestConservation_Transfers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "500.00")
	testutil.SeedAccount(t, db, "B", "250.00")

	amounts := []string{"0.01", "12.34", "100.00", "99.99", "500.00"}
	for i, amt := range amounts {
		from, to := "A", "B"
		if i%2 == 1 {
			from, to = "B", "A"
		}
		before := testutil.GetAccountBalance(t, db, "A").Add(testutil.GetAccountBalance(t, db, "B"))
		_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: from, ReceiverID: to, Amount: dec(amt)})
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
		after := testutil.GetAccountBalance(t, db, "A").Add(testutil.GetAccountBalance(t, db, "B"))
		assert.True(t, before.Equal(after), "transfer %d changed total from %s to %s", i, before, after)
	}
}

func TestNonNegativity_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "100.00")
	testutil.SeedAlias(t, db, "acct-a", "A")

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := range workers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			switch idx % 3 {
			case 0:
				_, err := svc.Withdraw(ctx, ledger.WithdrawRequest{AccountID: "A", Amount: dec("30.00")})
				results <- err
			case 1:
				_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: "A", ReceiverID: fmt.Sprintf("R%d", idx), Amount: dec("30.00")})
				results <- err
			default:
				res := svc.Pay(ctx, ledger.PayRequest{Identifier: "acct-a", Amount: dec("30.00")})
				if res.Success {
					results <- nil
				} else {
					results <- fmt.Errorf("%s: %w", res.Message, domain.ErrInsufficientFunds)
				}
			}
		}(i)
	}

	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}

	assert.Equal(t, 3, successes, "only three 30.00 debits fit in 100.00")
	assertBalance(t, db, "A", "10.00")
}

func TestDeadlockFreedom_OppositeTransfers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	testutil.SeedAccount(t, db, "A", "1000.00")
	testutil.SeedAccount(t, db, "B", "1000.00")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)

	for i := range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: "A", ReceiverID: "B", Amount: dec("3.00"), IdempotencyKey: fmt.Sprintf("ab-%d", i)})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{SenderID: "B", ReceiverID: "A", Amount: dec("5.00"), IdempotencyKey: fmt.Sprintf("ba-%d", i)})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assertBalance(t, db, "A", "1040.00")
	assertBalance(t, db, "B", "960.00")
}

func TestConcurrentSameKey_AppliesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	ids := make(chan int64, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			txn, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("25.00"), IdempotencyKey: "same-key"})
			if assert.NoError(t, err) {
				ids <- txn.ID
			}
		}()
	}

	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
	assertBalance(t, db, "A", "25.00")
	assert.Equal(t, 1, testutil.CountByKey(t, db, "same-key"))
}

func TestScenario_PayRewards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	n := &recordingNotifier{}
	svc := setupLedger(t, db, n)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "acct-42", "40000.00")
	testutil.SeedAlias(t, db, "acct-42", "acct-42")

	res := svc.Pay(ctx, ledger.PayRequest{Identifier: "acct-42", Amount: dec("25000")})
	require.True(t, res.Success, res.Message)
	assert.NotZero(t, res.TransactionID)
	assert.True(t, res.BalanceRemaining.Equal(dec("15000.00")))
	assert.Equal(t, int64(2), res.PointsEarned)
	assert.Equal(t, int64(2), testutil.GetRewardPoints(t, db, "acct-42"))

	res = svc.Pay(ctx, ledger.PayRequest{Identifier: "acct-42", Amount: dec("9999")})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(0), res.PointsEarned)
	assert.Equal(t, int64(2), testutil.GetRewardPoints(t, db, "acct-42"))

	assert.Equal(t, 2, n.count())
}

func TestPay_FailureResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "poor", "1.00")
	testutil.SeedAlias(t, db, "poor-ref", "poor")

	res := svc.Pay(ctx, ledger.PayRequest{Identifier: "unknown", Amount: dec("5")})
	assert.False(t, res.Success)
	assert.Equal(t, ledger.MessageUserNotFound, res.Message)

	res = svc.Pay(ctx, ledger.PayRequest{Identifier: "poor-ref", Amount: dec("5")})
	assert.False(t, res.Success)
	assert.Equal(t, ledger.MessageInsufficientFund, res.Message)
	assert.True(t, res.BalanceRemaining.Equal(dec("1.00")))
	assertBalance(t, db, "poor", "1.00")
}

func TestPay_AliasRegisteredForFreshAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	dir := directory.New(repository.NewAliasRepository(db))

	require.NoError(t, dir.Register(ctx, "Fresh-Ref", "fresh"))
	assertBalance(t, db, "fresh", "0.00")

	res := svc.Pay(ctx, ledger.PayRequest{Identifier: "fresh-ref", Amount: dec("5")})
	assert.False(t, res.Success)
	assert.Equal(t, ledger.MessageInsufficientFund, res.Message)

	_, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "fresh", Amount: dec("20.00")})
	require.NoError(t, err)

	res = svc.Pay(ctx, ledger.PayRequest{Identifier: "fresh-ref", Amount: dec("5")})
	assert.True(t, res.Success)
	assertBalance(t, db, "fresh", "15.00")
}

func TestNotifierFailure_DoesNotAffectOutcome(t *testing.T) {
	db := testutil.SetupTestDB(t)
	n := &recordingNotifier{err: errors.New("redis down")}
	svc := setupLedger(t, db, n)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "A", "10.00")
	testutil.SeedAlias(t, db, "a-ref", "A")

	_, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("5.00")})
	require.NoError(t, err)

	res := svc.Pay(ctx, ledger.PayRequest{Identifier: "a-ref", Amount: dec("3.00")})
	assert.True(t, res.Success)

	assertBalance(t, db, "A", "12.00")
	assert.Equal(t, 2, n.count())
}

func TestScenario_PaymentRequestLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	pr, err := svc.CreatePaymentRequest(ctx, ledger.PaymentRequestInput{Amount: dec("50.0"), IdempotencyKey: "order-1", QRPayload: "QR:1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, pr.Status)
	assert.Nil(t, pr.AccountID)

	first, err := svc.ConfirmPayment(ctx, "order-1", "sim-ref-1")
	require.NoError(t, err)
	assert.Equal(t, pr.ID, first.ID)
	assert.Equal(t, domain.StatusCompleted, first.Status)

	second, err := svc.ConfirmPayment(ctx, "order-1", "")
	require.NoError(t, err)
	assert.Equal(t, pr.ID, second.ID)
	assert.Equal(t, domain.StatusCompleted, second.Status)
	require.NotNil(t, second.ProviderReference)
	assert.Equal(t, "sim-ref-1", *second.ProviderReference)

	stored, err := svc.GetPaymentRequest(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestPaymentRequest_LinkedAccountCreditedOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	_, err := svc.CreatePaymentRequest(ctx, ledger.PaymentRequestInput{Amount: dec("50.00"), IdempotencyKey: "order-2", AccountID: "merchant"})
	require.NoError(t, err)
	assertBalance(t, db, "merchant", "0.00")

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmPayment(ctx, "order-2", "ref")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assertBalance(t, db, "merchant", "50.00")
}

func TestConfirmPayment_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	_, err := svc.ConfirmPayment(ctx, "missing", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	dep, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("1"), IdempotencyKey: "dep-x"})
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, "dep-x", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetPaymentRequest(ctx, dep.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCharge_RoutesToTransferOrWithdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()
	testutil.SeedAccount(t, db, "diner", "100.00")

	txn, err := svc.Charge(ctx, ledger.ChargeRequest{AccountID: "diner", MerchantID: "resto", Amount: dec("40.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.KindTransfer, txn.Kind)

	txn, err = svc.Charge(ctx, ledger.ChargeRequest{AccountID: "diner", Amount: dec("10.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.KindWithdraw, txn.Kind)

	assertBalance(t, db, "diner", "50.00")
	assertBalance(t, db, "resto", "40.00")
}

func TestListTransactions_NewestFirstBothSides(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedger(t, db, nil)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, ledger.DepositRequest{AccountID: "A", Amount: dec("100")})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: "A", ReceiverID: "B", Amount: dec("10")})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, ledger.TransferRequest{SenderID: "B", ReceiverID: "A", Amount: dec("5")})
	require.NoError(t, err)

	page, err := svc.ListTransactions(ctx, "A", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, ledger.DefaultListLimit, page.Limit)
	require.Len(t, page.Transactions, 3)
	for i := 1; i < len(page.Transactions); i++ {
		assert.Greater(t, page.Transactions[i-1].ID, page.Transactions[i].ID)
	}

	page, err = svc.ListTransactions(ctx, "B", "", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Transactions, 1)

	page, err = svc.ListTransactions(ctx, "A", domain.KindTransfer, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, txn := range page.Transactions {
		assert.Equal(t, domain.KindTransfer, txn.Kind)
	}

	_, err = svc.ListTransactions(ctx, "A", domain.TransactionKind("refund"), 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.GetTransactionForAccount(ctx, page.Transactions[0].ID, "C")
	require.ErrorIs(t, err, domain.ErrNotFound)

	acct, err := svc.GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(dec("95.00")))

	_, err = svc.GetAccount(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
