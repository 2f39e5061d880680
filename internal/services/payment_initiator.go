package services

import (
	"context"
	"fmt"

	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the part of the gateway client used to start and check
// payments.
type PaymentGateway interface {
	Initiate(ctx context.Context, phone string, amount decimal.Decimal, reference string) (gateway.InitiateResult, error)
	Verify(ctx context.Context, correlationID string) (gateway.VerifyResult, error)
}

// JobScheduler queues a transaction for status polling.
type JobScheduler interface {
	Schedule(ctx context.Context, transactionID int64) error
}

// InitiateResult is returned by every payment initiator.
type InitiateResult struct {
	TransactionID int64  `json:"transactionId"`
	Accepted      bool   `json:"accepted"`
	CorrelationID string `json:"correlationId,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// paymentInitiator is the shared create-initiate-schedule path.
type paymentInitiator struct {
	store     *LedgerStore
	gateway   PaymentGateway
	settler   Settler
	scheduler JobScheduler
	log       zerolog.Logger
}

func (p *paymentInitiator) initiate(ctx context.Context, t *models.Transaction, phone string) (*InitiateResult, error) {
	if err := p.store.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	log := p.log.With().Int64("transaction_id", t.ID).Str("kind", string(t.Kind)).Logger()
	reference := models.GatewayReference(t.Kind, t.ID)

	res, err := p.gateway.Initiate(ctx, phone, t.Amount, reference)
	if err != nil {
		p.fail(ctx, t.ID, err.Error())
		return nil, err
	}
	if !res.Accepted {
		log.Warn().Str("reason", res.Reason).Msg("gateway rejected payment prompt")
		p.fail(ctx, t.ID, res.Reason)
		return &InitiateResult{TransactionID: t.ID, Reason: res.Reason}, nil
	}

	if err := p.attachCorrelation(ctx, t.ID, res.CorrelationID, reference); err != nil {
		// the prompt is live but neither callback nor poller can match it to the row
		log.Error().Err(err).
			Str("correlation_id", res.CorrelationID).
			Str("reference", reference).
			Msg("gateway accepted prompt but correlation was not recorded, repair manually")
		return nil, fmt.Errorf("record gateway correlation: %w", err)
	}

	if err := p.scheduler.Schedule(ctx, t.ID); err != nil {
		// start-up recovery re-queues pending rows, so this only delays polling
		log.Error().Err(err).Msg("failed to schedule reconciliation")
	}

	log.Info().Str("correlation_id", res.CorrelationID).Msg("payment initiated")
	return &InitiateResult{TransactionID: t.ID, Accepted: true, CorrelationID: res.CorrelationID}, nil
}

// attachCorrelation tries twice before giving up.
func (p *paymentInitiator) attachCorrelation(ctx context.Context, id int64, correlationID, reference string) error {
	err := p.store.AttachCorrelation(ctx, id, correlationID, reference)
	if err == nil {
		return nil
	}
	p.log.Warn().Err(err).Int64("transaction_id", id).Msg("retrying correlation attach")
	return p.store.AttachCorrelation(ctx, id, correlationID, reference)
}

func (p *paymentInitiator) fail(ctx context.Context, id int64, reason string) {
	if _, err := p.settler.Fail(ctx, id, reason); err != nil {
		p.log.Error().Err(err).Int64("transaction_id", id).Msg("failed to mark rejected transaction")
	}
}

func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return amount, nil
}

// PaymentDeps bundles what every initiator needs to move money.
type PaymentDeps struct {
	Store     *LedgerStore
	Gateway   PaymentGateway
	Settler   Settler
	Scheduler JobScheduler
	Log       zerolog.Logger
}

func newPaymentInitiator(deps PaymentDeps, component string) *paymentInitiator {
	return &paymentInitiator{
		store:     deps.Store,
		gateway:   deps.Gateway,
		settler:   deps.Settler,
		scheduler: deps.Scheduler,
		log:       deps.Log.With().Str("component", component).Logger(),
	}
}
