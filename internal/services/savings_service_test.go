package services

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateSaving(t *testing.T) {
	f := newPaymentsFixture(t)
	s := NewSavingsService(f.deps)

	f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("saving", int64(3), decimalEq("250.5"), "school trip", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(43)))
	f.gateway.On("Initiate", "+254 712 345 678", "250.5", "SAVE-43").
		Return(gateway.InitiateResult{Accepted: true, CorrelationID: "ws_CO_43"}, nil)
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET correlation_id = $2")).
		WithArgs(int64(43), "ws_CO_43", "SAVE-43", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.scheduler.On("Schedule", int64(43)).Return(nil)

	res, err := s.InitiateSaving(context.Background(), 3, decimal.RequireFromString("250.499"), "+254 712 345 678", " school trip ")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "ws_CO_43", res.CorrelationID)
	f.assertAll(t)
}

func TestInitiateSaving_NoDescription(t *testing.T) {
	f := newPaymentsFixture(t)
	s := NewSavingsService(f.deps)

	f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("saving", int64(3), decimalEq("500"), nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(44)))
	f.gateway.On("Initiate", testPhone, "500", "SAVE-44").
		Return(gateway.InitiateResult{Accepted: true, CorrelationID: "ws_CO_44"}, nil)
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET correlation_id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.scheduler.On("Schedule", int64(44)).Return(assert.AnError)

	res, err := s.InitiateSaving(context.Background(), 3, decimal.NewFromInt(500), testPhone, "   ")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	f.assertAll(t)
}

func TestInitiateSaving_CorrelationAttach(t *testing.T) {
	attach := regexp.QuoteMeta("UPDATE transactions SET correlation_id = $2")

	t.Run("second attempt records it", func(t *testing.T) {
		f := newPaymentsFixture(t)
		s := NewSavingsService(f.deps)

		f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(45)))
		f.gateway.On("Initiate", testPhone, "500", "SAVE-45").
			Return(gateway.InitiateResult{Accepted: true, CorrelationID: "ws_CO_45"}, nil)
		f.mock.ExpectExec(attach).WillReturnError(errors.New("connection reset"))
		f.mock.ExpectExec(attach).WithArgs(int64(45), "ws_CO_45", "SAVE-45", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.scheduler.On("Schedule", int64(45)).Return(nil)

		res, err := s.InitiateSaving(context.Background(), 3, decimal.NewFromInt(500), testPhone, "")
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		f.assertAll(t)
	})

	t.Run("lost correlation is logged for repair", func(t *testing.T) {
		var buf bytes.Buffer
		f := newPaymentsFixture(t)
		f.deps.Log = zerolog.New(&buf)
		s := NewSavingsService(f.deps)

		f.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(46)))
		f.gateway.On("Initiate", testPhone, "500", "SAVE-46").
			Return(gateway.InitiateResult{Accepted: true, CorrelationID: "ws_CO_46"}, nil)
		f.mock.ExpectExec(attach).WillReturnError(errors.New("connection reset"))
		f.mock.ExpectExec(attach).WillReturnError(errors.New("connection reset"))

		_, err := s.InitiateSaving(context.Background(), 3, decimal.NewFromInt(500), testPhone, "")
		require.Error(t, err)
		f.assertAll(t)

		out := buf.String()
		assert.Contains(t, out, `"level":"error"`)
		assert.Contains(t, out, `"correlation_id":"ws_CO_46"`)
		assert.Contains(t, out, `"transaction_id":46`)
		f.scheduler.AssertNotCalled(t, "Schedule", int64(46))
	})
}

func TestInitiateSaving_InvalidInput(t *testing.T) {
	f := newPaymentsFixture(t)
	s := NewSavingsService(f.deps)

	_, err := s.InitiateSaving(context.Background(), 3, decimal.Zero, testPhone, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = s.InitiateSaving(context.Background(), 3, decimal.NewFromInt(100), "not a phone", "")
	assert.ErrorIs(t, err, ErrInvalidPhone)
	f.assertAll(t)
}

func TestDeleteSaving(t *testing.T) {
	f := newPaymentsFixture(t)
	s := NewSavingsService(f.deps)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id, amount, status FROM transactions")).
		WithArgs(int64(43), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "status"}).AddRow(int64(43), "250.50", "completed"))
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET total_savings = GREATEST")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	require.NoError(t, s.DeleteSaving(context.Background(), 3, 43))
	f.assertAll(t)
}
