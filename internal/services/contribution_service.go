package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/config"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ContributionService runs the daily contribution slot and the missed-day
// penalty ledger.
type ContributionService struct {
	payments      *paymentInitiator
	store         *LedgerStore
	cfg           *config.CadenceConfig
	pendingWindow time.Duration
	log           zerolog.Logger
	now           func() time.Time
}

// NewContributionService builds the service. pendingWindow is how long an
// unsettled contribution blocks a new one; it matches the polling ceiling.
func NewContributionService(deps PaymentDeps, cfg *config.CadenceConfig, pendingWindow time.Duration) *ContributionService {
	return &ContributionService{
		payments:      newPaymentInitiator(deps, "contributions"),
		store:         deps.Store,
		cfg:           cfg,
		pendingWindow: pendingWindow,
		log:           deps.Log.With().Str("component", "contributions").Logger(),
		now:           time.Now,
	}
}

// InitiateContribution prompts the member for today's contribution. A zero
// amount means the configured default.
func (s *ContributionService) InitiateContribution(ctx context.Context, userID int64, amount decimal.Decimal, phone string) (*InitiateResult, error) {
	if amount.IsZero() {
		amount = decimal.NewFromFloat(s.cfg.DefaultAmount)
	}
	amount, err := normalizeAmount(amount)
	if err != nil {
		return nil, err
	}
	if _, err := gateway.NormalizePhone(phone); err != nil {
		return nil, err
	}

	now := s.now()

	last, err := s.store.LatestCompletedContribution(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load last contribution: %w", err)
	}
	if last != nil && last.NextAllowedAt != nil && now.Before(*last.NextAllowedAt) {
		return nil, &CadenceError{NextAllowedAt: *last.NextAllowedAt}
	}

	inFlight, err := s.store.HasPendingContribution(ctx, userID, now.Add(-s.pendingWindow))
	if err != nil {
		return nil, fmt.Errorf("check pending contributions: %w", err)
	}
	if inFlight {
		return nil, ErrContributionInFlight
	}

	return s.payments.initiate(ctx, &models.Transaction{
		Kind:   models.KindContribution,
		UserID: userID,
		Amount: amount,
	}, phone)
}

// InitiatePenaltyPayment prompts the member to pay one missed-day penalty.
func (s *ContributionService) InitiatePenaltyPayment(ctx context.Context, userID, missedID int64, phone string) (*InitiateResult, error) {
	if _, err := gateway.NormalizePhone(phone); err != nil {
		return nil, err
	}

	missed, err := s.store.GetMissedContribution(ctx, missedID)
	if err != nil {
		return nil, err
	}
	if missed.UserID != userID {
		return nil, fmt.Errorf("missed contribution %d: %w", missedID, ErrNotFound)
	}
	if missed.IsPaid {
		return nil, ErrPenaltyAlreadyPaid
	}

	inFlight, err := s.store.HasPendingPenaltyPayment(ctx, missed.ID)
	if err != nil {
		return nil, fmt.Errorf("check pending penalty payments: %w", err)
	}
	if inFlight {
		return nil, ErrPenaltyPaymentInFlight
	}

	res, err := s.payments.initiate(ctx, &models.Transaction{
		Kind:                 models.KindPenaltyPayment,
		UserID:               userID,
		Amount:               missed.PenaltyAmount,
		MissedContributionID: &missed.ID,
	}, phone)

	// a concurrent request won the partial unique index
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, ErrPenaltyPaymentInFlight
	}
	return res, err
}

func (s *ContributionService) ListUnpaidPenalties(ctx context.Context, userID int64) ([]models.MissedContribution, error) {
	return s.store.ListUnpaidMissed(ctx, userID)
}

func (s *ContributionService) ListContributions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	return s.store.ListUserTransactions(ctx, userID, models.KindContribution, limit)
}
