package services

import (
	"context"
	"strings"

	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SavingsService handles free-form deposits. There is no cadence limit.
type SavingsService struct {
	payments *paymentInitiator
	store    *LedgerStore
	log      zerolog.Logger
}

func NewSavingsService(deps PaymentDeps) *SavingsService {
	return &SavingsService{
		payments: newPaymentInitiator(deps, "savings"),
		store:    deps.Store,
		log:      deps.Log.With().Str("component", "savings").Logger(),
	}
}

func (s *SavingsService) InitiateSaving(ctx context.Context, userID int64, amount decimal.Decimal, phone, description string) (*InitiateResult, error) {
	amount, err := normalizeAmount(amount)
	if err != nil {
		return nil, err
	}
	if _, err := gateway.NormalizePhone(phone); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		Kind:   models.KindSaving,
		UserID: userID,
		Amount: amount,
	}
	if d := strings.TrimSpace(description); d != "" {
		t.Description = &d
	}

	return s.payments.initiate(ctx, t, phone)
}

// DeleteSaving removes a settled or failed saving. Completed savings are
// taken back off the member's total.
func (s *SavingsService) DeleteSaving(ctx context.Context, userID, savingID int64) error {
	if err := s.store.DeleteSaving(ctx, userID, savingID); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", userID).Int64("saving_id", savingID).Msg("saving deleted")
	return nil
}

func (s *SavingsService) ListSavings(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	return s.store.ListUserTransactions(ctx, userID, models.KindSaving, limit)
}
