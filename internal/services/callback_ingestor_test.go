package services

import (
	"context"
	"errors"
	"testing"

	"github.com/chamapay/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	successCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":20.00},{"Name":"MpesaReceiptNumber","Value":"QBC12XYZ"},{"Name":"PhoneNumber","Value":254712345678}]}}}}`
	cancelledCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
)

func TestCallbackIngestor_Success(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(pendingContribution(1, "ws_CO_1"))
	queue := NewMemoryJobQueue()
	require.NoError(t, queue.Push(ctx, ReconcileJob{TransactionID: 1}))
	ingestor := NewCallbackIngestor(ledger, ledger, queue, zerolog.Nop())

	ack := ingestor.HandleGatewayCallback(ctx, []byte(successCallback))
	assert.Equal(t, CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}, ack)

	tx, err := ledger.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tx.Status)
	require.NotNil(t, tx.ReceiptRef)
	assert.Equal(t, "QBC12XYZ", *tx.ReceiptRef)
	assert.Equal(t, 0, queue.Len())

	// a redelivered callback changes nothing
	ingestor.HandleGatewayCallback(ctx, []byte(successCallback))
	assert.Equal(t, 1, ledger.wins)
	assert.Equal(t, "20", ledger.total(3).String())
}

func TestCallbackIngestor_Failure(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger(pendingContribution(1, "ws_CO_1"))
	ingestor := NewCallbackIngestor(ledger, ledger, NewMemoryJobQueue(), zerolog.Nop())

	ack := ingestor.HandleGatewayCallback(ctx, []byte(cancelledCallback))
	assert.Equal(t, acceptedAck, ack)

	tx, err := ledger.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, tx.Status)
	assert.Equal(t, "Request cancelled by user", *tx.FailureReason)
	assert.True(t, ledger.total(3).IsZero())
}

func TestCallbackIngestor_AlwaysAcks(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown correlation", func(t *testing.T) {
		settler := new(MockSettler)
		ingestor := NewCallbackIngestor(newMemLedger(), settler, NewMemoryJobQueue(), zerolog.Nop())

		assert.Equal(t, acceptedAck, ingestor.HandleGatewayCallback(ctx, []byte(successCallback)))
		settler.AssertNotCalled(t, "Settle")
	})

	t.Run("malformed body", func(t *testing.T) {
		settler := new(MockSettler)
		ingestor := NewCallbackIngestor(newMemLedger(), settler, NewMemoryJobQueue(), zerolog.Nop())

		assert.Equal(t, acceptedAck, ingestor.HandleGatewayCallback(ctx, []byte(`not json`)))
		settler.AssertNotCalled(t, "Settle")
	})

	t.Run("settlement error", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("Settle", int64(1), "QBC12XYZ").Return(false, errors.New("db down"))
		ingestor := NewCallbackIngestor(newMemLedger(pendingContribution(1, "ws_CO_1")), settler, NewMemoryJobQueue(), zerolog.Nop())

		assert.Equal(t, acceptedAck, ingestor.HandleGatewayCallback(ctx, []byte(successCallback)))
		settler.AssertExpectations(t)
	})
}
