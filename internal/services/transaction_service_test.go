package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(context.WithValue(req.Context(), "userID", 1))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	msg, _ := resp["error"].(string)
	return msg
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func TestCreateTransaction_Income(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("INSERT INTO transactions").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 100.00, "type": "income", "accountId": "acc-1"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var tx map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tx))
	assert.Equal(t, "income", tx["type"])
	assert.Equal(t, "acc-1", tx["accountId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_ExpenseWithCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT type FROM categories").
		WithArgs("cat-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("expense"))
	mock.ExpectQuery("INSERT INTO transactions").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 30.00, "type": "expense", "accountId": "acc-1", "categoryId": "cat-1"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_InvalidAmount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	for _, body := range []string{
		`{"amount": 0, "type": "income", "accountId": "acc-1"}`,
		`{"amount": -12.50, "type": "expense", "accountId": "acc-1"}`,
	} {
		req := newAuthedRequest("POST", "/api/v1/transactions", body)
		rr := httptest.NewRecorder()

		service.CreateTransaction(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid amount", decodeError(t, rr))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_InvalidType(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 10, "type": "withdrawal", "accountId": "acc-1"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid type", decodeError(t, rr))
}

func TestCreateTransaction_AccountNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost", 1).
		WillReturnRows(existsRow(false))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 10, "type": "income", "accountId": "ghost"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Account not found", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction_CategoryTypeMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acc-1", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT type FROM categories").
		WithArgs("cat-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("income"))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 30, "type": "expense", "accountId": "acc-1", "categoryId": "cat-1"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Category type must be expense", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransfer_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cash", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("bank", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20.00, "type": "transfer", "accountId": "cash", "toAccountId": "bank"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Transfer successful", resp["message"])
	assert.NotEmpty(t, resp["transferGroupId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransfer_SameAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20, "type": "transfer", "accountId": "cash", "toAccountId": "cash"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Cannot transfer to the same account", decodeError(t, rr))
	// Rejected before any database work.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransfer_CategoryNotAllowed(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20, "type": "transfer", "accountId": "cash", "toAccountId": "bank", "categoryId": "cat-1"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "categoryId is not allowed for transfers", decodeError(t, rr))
}

func TestCreateTransfer_SourceNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost", 1).
		WillReturnRows(existsRow(false))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20, "type": "transfer", "accountId": "ghost", "toAccountId": "bank"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Source account not found", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransfer_DestinationNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cash", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost", 1).
		WillReturnRows(existsRow(false))

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20, "type": "transfer", "accountId": "cash", "toAccountId": "ghost"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Destination account not found", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransfer_SecondLegFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cash", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("bank", 1).
		WillReturnRows(existsRow(true))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	service := NewTransactionService(db)
	req := newAuthedRequest("POST", "/api/v1/transactions",
		`{"amount": 20, "type": "transfer", "accountId": "cash", "toAccountId": "bank"}`)
	rr := httptest.NewRecorder()

	service.CreateTransaction(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Transfer failed", decodeError(t, rr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "type", "amount", "note", "category_id", "transfer_group_id", "transfer_role", "created_at",
	}).
		AddRow("t2", "cash", "expense", "30.00", nil, "cat-1", nil, nil, now).
		AddRow("t1", "cash", "income", "100.00", "salary", nil, nil, nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, account_id, type, amount, note, category_id").
		WithArgs(1).
		WillReturnRows(rows)

	service := NewTransactionService(db)
	req := newAuthedRequest("GET", "/api/v1/transactions", "")
	rr := httptest.NewRecorder()

	service.GetTransactions(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var transactions []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &transactions))
	require.Len(t, transactions, 2)
	assert.Equal(t, "t2", transactions[0]["id"])
	assert.Equal(t, "t1", transactions[1]["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("tombstones the row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE transactions SET is_deleted").
			WithArgs("t1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		service := NewTransactionService(db)
		req := newAuthedRequest("DELETE", "/api/v1/transactions/t1", "")
		req = withURLParam(req, "id", "t1")
		rr := httptest.NewRecorder()

		service.DeleteTransaction(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or already deleted returns 404", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE transactions SET is_deleted").
			WithArgs("ghost", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		service := NewTransactionService(db)
		req := newAuthedRequest("DELETE", "/api/v1/transactions/ghost", "")
		req = withURLParam(req, "id", "ghost")
		rr := httptest.NewRecorder()

		service.DeleteTransaction(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Transaction not found", decodeError(t, rr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
