package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type mockTransactions struct {
	limit, offset int
	kind          domain.TransactionKind
	page          *ledger.TransactionPage
	txn           *domain.Transaction
	err           error
}

func (m *mockTransactions) GetTransactionForAccount(_ context.Context, id int64, accountID string) (*domain.Transaction, error) {
	return m.txn, m.err
}

func (m *mockTransactions) ListTransactions(_ context.Context, accountID string, kind domain.TransactionKind, limit, offset int) (*ledger.TransactionPage, error) {
	m.limit, m.offset, m.kind = limit, offset, kind
	return m.page, m.err
}

func TestTransactionList(t *testing.T) {
	svc := &mockTransactions{page: &ledger.TransactionPage{
		Transactions: []domain.Transaction{
			{ID: 2, Kind: domain.KindWithdraw, Amount: decimal.NewFromInt(5)},
			{ID: 1, Kind: domain.KindDeposit, Amount: decimal.NewFromInt(10)},
		},
		Total:  2,
		Limit:  10,
		Offset: 0,
	}}
	h := NewTransactionHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=10&offset=0", nil), "acct-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, svc.limit)
	data := decodeResponse(t, rr).Data.(map[string]any)
	assert.EqualValues(t, 2, data["total"])
	txns := data["transactions"].([]any)
	require.Len(t, txns, 2)
	assert.EqualValues(t, 2, txns[0].(map[string]any)["transaction_id"])
	assert.Equal(t, "5.00", txns[0].(map[string]any)["amount"])
}

func TestTransactionList_BadPaging(t *testing.T) {
	h := NewTransactionHandler(&mockTransactions{})

	rr := httptest.NewRecorder()
	h.List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=ten", nil), "acct-1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeResponse(t, rr).Error.Code)
}

func TestTransactionList_KindFilter(t *testing.T) {
	svc := &mockTransactions{page: &ledger.TransactionPage{Limit: 20}}
	h := NewTransactionHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?kind=transfer", nil), "acct-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.KindTransfer, svc.kind)

	svc.kind = ""
	rr = httptest.NewRecorder()
	h.List(rr, authed(httptest.NewRequest(http.MethodGet, "/api/v1/transactions?kind=refund", nil), "acct-1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeResponse(t, rr).Error.Code)
	assert.Empty(t, svc.kind)
}

func TestTransactionGet(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		svcErr     error
		wantStatus int
	}{
		{name: "found", id: "7", wantStatus: http.StatusOK},
		{name: "not numeric", id: "abc", wantStatus: http.StatusNotFound},
		{name: "not party", id: "7", svcErr: fmt.Errorf("GetTransactionForAccount: %w", domain.ErrNotFound), wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockTransactions{txn: &domain.Transaction{ID: 7, Kind: domain.KindDeposit}, err: tc.svcErr}
			h := NewTransactionHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+tc.id, nil)
			req.SetPathValue("id", tc.id)
			rr := httptest.NewRecorder()
			h.Get(rr, authed(req, "acct-1"))

			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}
