package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalletTest(t *testing.T) (Repository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func walletRow(id, userID int, balance int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "balance_cents", "currency", "created_at", "updated_at"}).
		AddRow(id, userID, balance, "THB", now, now)
}

func TestAddTransactionJournalsBalance(t *testing.T) {
	repo, mock := newWalletTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM wallets").
		WithArgs(5).
		WillReturnRows(walletRow(1, 5, 10000))
	mock.ExpectExec("UPDATE wallets").
		WithArgs(int64(7000), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(1, int64(-3000), TxMembershipPayment, int64(7000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AddTransaction(context.Background(), 5, -3000, TxMembershipPayment)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTransactionInsufficientBalance(t *testing.T) {
	repo, mock := newWalletTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM wallets").
		WithArgs(5).
		WillReturnRows(walletRow(1, 5, 1000))
	mock.ExpectRollback()

	err := repo.AddTransaction(context.Background(), 5, -3000, TxMembershipPayment)

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTransactionCreatesMissingWallet(t *testing.T) {
	repo, mock := newWalletTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM wallets").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("INSERT INTO wallets").
		WithArgs(5).
		WillReturnRows(walletRow(1, 5, 0))
	mock.ExpectExec("UPDATE wallets").
		WithArgs(int64(3000), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(1, int64(3000), TxTopUp, int64(3000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.AddTransaction(context.Background(), 5, 3000, TxTopUp)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionsUnknownWallet(t *testing.T) {
	repo, mock := newWalletTest(t)

	mock.ExpectQuery("SELECT id FROM wallets").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	txs, err := repo.GetTransactions(context.Background(), 5, 10, 0)

	require.NoError(t, err)
	assert.Empty(t, txs)
}
