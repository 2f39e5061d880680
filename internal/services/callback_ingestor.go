package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/chamapay/backend/internal/gateway"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallbackAck is the body returned to the gateway for every callback.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var acceptedAck = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

// CallbackIngestor settles transactions from gateway webhooks. It races the
// poller; settlement decides the winner.
type CallbackIngestor struct {
	store   TransactionReader
	settler Settler
	queue   JobQueue
	log     zerolog.Logger
}

func NewCallbackIngestor(store TransactionReader, settler Settler, queue JobQueue, log zerolog.Logger) *CallbackIngestor {
	return &CallbackIngestor{
		store:   store,
		settler: settler,
		queue:   queue,
		log:     log.With().Str("component", "callback").Logger(),
	}
}

// HandleGatewayCallback always acknowledges. Processing errors are logged
// so the provider never retry-storms us.
func (c *CallbackIngestor) HandleGatewayCallback(ctx context.Context, raw []byte) CallbackAck {
	eventID := uuid.NewString()
	if err := c.ingest(ctx, eventID, raw); err != nil {
		c.log.Error().Err(err).Str("event_id", eventID).Msg("callback processing failed")
	}
	return acceptedAck
}

func (c *CallbackIngestor) ingest(ctx context.Context, eventID string, raw []byte) error {
	cb, err := gateway.ParseCallback(raw)
	if err != nil {
		return err
	}

	log := c.log.With().
		Str("event_id", eventID).
		Str("checkout_request_id", cb.CheckoutRequestID).
		Int("result_code", cb.ResultCode).
		Logger()

	t, err := c.store.GetTransactionByCorrelation(ctx, cb.CheckoutRequestID)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Msg("callback for unknown transaction")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup transaction: %w", err)
	}

	var won bool
	if cb.Succeeded() {
		won, err = c.settler.Settle(ctx, t.ID, cb.ReceiptRef)
	} else {
		won, err = c.settler.Fail(ctx, t.ID, cb.ResultDesc)
	}
	if err != nil {
		return fmt.Errorf("settle transaction %d: %w", t.ID, err)
	}

	if err := c.queue.Remove(ctx, t.ID); err != nil {
		log.Warn().Err(err).Msg("failed to drop reconciliation job")
	}

	log.Info().Int64("transaction_id", t.ID).Bool("won", won).Msg("callback processed")
	return nil
}
