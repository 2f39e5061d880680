package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chamapay/backend/internal/config"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	minLoanUsageLength = 5
	maxLoanMonths      = 12
	uniqueViolation    = "23505"
)

// LoanService drives loans from application to closure.
type LoanService struct {
	payments *paymentInitiator
	store    *LedgerStore
	cfg      *config.LoanConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewLoanService(deps PaymentDeps, cfg *config.LoanConfig) *LoanService {
	return &LoanService{
		payments: newPaymentInitiator(deps, "loans"),
		store:    deps.Store,
		cfg:      cfg,
		log:      deps.Log.With().Str("component", "loans").Logger(),
		now:      time.Now,
	}
}

// ApplyForLoan opens a pending loan. Interest is priced now and frozen.
func (s *LoanService) ApplyForLoan(ctx context.Context, userID int64, amount decimal.Decimal, durationMonths int, usage string) (*models.Loan, error) {
	amount = amount.Round(2)
	minAmount := decimal.NewFromFloat(s.cfg.MinAmount)
	maxAmount := decimal.NewFromFloat(s.cfg.MaxAmount)
	if amount.LessThan(minAmount) || amount.GreaterThan(maxAmount) {
		return nil, fmt.Errorf("%w: loan must be between %s and %s", ErrInvalidAmount, minAmount, maxAmount)
	}
	usage = strings.TrimSpace(usage)
	if len(usage) < minLoanUsageLength {
		return nil, fmt.Errorf("%w: usage must be at least %d characters", ErrInvalidLoanRequest, minLoanUsageLength)
	}
	if durationMonths < 1 || durationMonths > maxLoanMonths {
		return nil, fmt.Errorf("%w: duration must be 1 to %d months", ErrInvalidLoanRequest, maxLoanMonths)
	}

	open, err := s.store.HasOpenLoan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check open loans: %w", err)
	}
	if open {
		return nil, ErrOpenLoanExists
	}

	rate := decimal.NewFromFloat(s.cfg.InterestRate)
	total := amount.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
	now := s.now().UTC()

	row := s.store.DB().QueryRowContext(ctx, `
		INSERT INTO loans (user_id, amount, interest_rate, base_total_amount, total_amount, amount_paid,
			status, duration_months, usage, overdue_days, overdue_penalty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4, 0, 'pending', $5, $6, 0, 0, $7, $7)
		RETURNING `+loanColumns,
		userID, amount, rate.Mul(decimal.NewFromInt(100)), total, durationMonths, usage, now)

	loan, err := scanLoan(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrOpenLoanExists
		}
		return nil, fmt.Errorf("create loan: %w", err)
	}

	s.log.Info().Int64("loan_id", loan.ID).Int64("user_id", userID).Str("amount", amount.StringFixed(2)).Msg("loan application received")
	return loan, nil
}

// ApproveLoan moves a pending loan to approved and starts its repayment clock.
func (s *LoanService) ApproveLoan(ctx context.Context, loanID, adminID int64) (*models.Loan, error) {
	now := s.now().UTC()
	row := s.store.DB().QueryRowContext(ctx, `
		UPDATE loans SET status = 'approved', approved_by = $2, approved_at = $3, due_date = $4, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+loanColumns,
		loanID, adminID, now, now.Add(s.cfg.RepaymentWindow))

	loan, err := s.transition(ctx, loanID, row)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("loan_id", loanID).Int64("admin_id", adminID).Msg("loan approved")
	return loan, nil
}

func (s *LoanService) RejectLoan(ctx context.Context, loanID, adminID int64, reason string) (*models.Loan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrRejectionReasonRequired
	}

	now := s.now().UTC()
	row := s.store.DB().QueryRowContext(ctx, `
		UPDATE loans SET status = 'rejected', rejection_reason = $2, approved_by = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+loanColumns,
		loanID, reason, adminID, now)

	loan, err := s.transition(ctx, loanID, row)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("loan_id", loanID).Int64("admin_id", adminID).Str("reason", reason).Msg("loan rejected")
	return loan, nil
}

// transition turns an empty conditional update into ErrNotFound or
// ErrLoanNotPending.
func (s *LoanService) transition(ctx context.Context, loanID int64, row *sql.Row) (*models.Loan, error) {
	loan, err := scanLoan(row)
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return nil, ErrLoanNotPending
}

// InitiateLoanRepayment prompts the member to pay part or all of a loan.
// Nothing is written when the request is rejected.
func (s *LoanService) InitiateLoanRepayment(ctx context.Context, userID, loanID int64, amount decimal.Decimal, phone string) (*InitiateResult, error) {
	amount, err := normalizeAmount(amount)
	if err != nil {
		return nil, err
	}
	if _, err := gateway.NormalizePhone(phone); err != nil {
		return nil, err
	}

	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, fmt.Errorf("loan %d: %w", loanID, ErrNotFound)
	}
	if !loan.AcceptsRepayment() {
		return nil, ErrLoanNotActive
	}
	if amount.GreaterThan(loan.Outstanding()) {
		return nil, fmt.Errorf("%w: outstanding is %s", ErrRepaymentExceedsBalance, loan.Outstanding().StringFixed(2))
	}

	return s.payments.initiate(ctx, &models.Transaction{
		Kind:   models.KindLoanRepayment,
		UserID: userID,
		Amount: amount,
		LoanID: &loan.ID,
	}, phone)
}

func (s *LoanService) GetLoan(ctx context.Context, userID, loanID int64) (*models.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.UserID != userID {
		return nil, fmt.Errorf("loan %d: %w", loanID, ErrNotFound)
	}
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	return s.store.ListUserLoans(ctx, userID)
}

// ListLoansByStatus is the admin view over every member's loans.
func (s *LoanService) ListLoansByStatus(ctx context.Context, status models.LoanStatus, limit int) ([]models.Loan, error) {
	switch status {
	case "", models.LoanPending, models.LoanApproved, models.LoanRejected, models.LoanPaid, models.LoanOverdue:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidLoanRequest, status)
	}
	return s.store.ListLoansByStatus(ctx, status, limit)
}
