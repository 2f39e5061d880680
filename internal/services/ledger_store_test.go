package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chamapay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*LedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLedgerStore(db), mock
}

func TestLedgerStore_CreateTransaction(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("saving", int64(3), decimalEq("500"), "rainy day", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	tx := &models.Transaction{
		Kind:        models.KindSaving,
		UserID:      3,
		Amount:      decimal.NewFromInt(500),
		Description: strPtr("rainy day"),
	}
	require.NoError(t, store.CreateTransaction(context.Background(), tx))
	assert.Equal(t, int64(41), tx.ID)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.False(t, tx.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_AttachCorrelation(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET correlation_id = $2, reference = $3")).
		WithArgs(int64(41), "ws_CO_1", "SAVE-41", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AttachCorrelation(context.Background(), 41, "ws_CO_1", "SAVE-41"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET correlation_id = $2, reference = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Error(t, store.AttachCorrelation(context.Background(), 41, "ws_CO_1", "SAVE-41"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_GetTransaction(t *testing.T) {
	store, mock := newTestStore(t)
	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id = $1")).
		WithArgs(int64(41)).
		WillReturnRows(txRows(models.Transaction{
			ID: 41, Kind: models.KindSaving, UserID: 3, Amount: decimal.NewFromInt(500),
			Status: models.StatusPending, CorrelationID: strPtr("ws_CO_1"), Reference: "SAVE-41",
			CreatedAt: created, UpdatedAt: created,
		}))

	got, err := store.GetTransaction(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, models.KindSaving, got.Kind)
	assert.True(t, got.IsPending())
	require.NotNil(t, got.CorrelationID)
	assert.Equal(t, "ws_CO_1", *got.CorrelationID)
	assert.Nil(t, got.ReceiptRef)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(txColumns))

	_, err = store.GetTransaction(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_LatestCompletedContribution_None(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("kind = 'contribution' AND status = 'completed'")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(txColumns))

	got, err := store.LatestCompletedContribution(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_PendingTransactions(t *testing.T) {
	store, mock := newTestStore(t)
	since := time.Date(2025, 3, 10, 8, 50, 0, 0, time.UTC)
	first, second := since.Add(time.Minute), since.Add(4*time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at FROM transactions WHERE status = 'pending' AND correlation_id IS NOT NULL")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), first).AddRow(int64(9), second))

	pending, err := store.PendingTransactions(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []PendingTransaction{{ID: 5, CreatedAt: first}, {ID: 9, CreatedAt: second}}, pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStore_DeleteSaving(t *testing.T) {
	lookup := regexp.QuoteMeta("SELECT id, amount, status FROM transactions")

	t.Run("completed saving is taken off the total", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lookup).WithArgs(int64(41), int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(41), "500.00", "completed"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET total_savings = GREATEST(total_savings - $1, 0)")).
			WithArgs(decimalEq("500"), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions WHERE id = $1")).
			WithArgs(int64(41)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.DeleteSaving(context.Background(), 3, 41))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed saving is deleted without touching totals", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lookup).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(41), "500.00", "failed"))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions WHERE id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.DeleteSaving(context.Background(), 3, 41))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending saving is refused", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lookup).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(41), "500.00", "pending"))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.DeleteSaving(context.Background(), 3, 41), ErrTransactionPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's saving is not found", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lookup).WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.DeleteSaving(context.Background(), 4, 41), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
