package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/audit"
	"github.com/chamapay/backend/internal/models"
	"github.com/rs/zerolog"
)

// Settler moves a pending transaction to a terminal state. Both methods
// report false when another path already settled the transaction.
type Settler interface {
	Settle(ctx context.Context, transactionID int64, receiptRef string) (bool, error)
	Fail(ctx context.Context, transactionID int64, reason string) (bool, error)
}

// applyFunc runs the kind-specific side effects of a completed transaction
// inside the settling database transaction.
type applyFunc func(ctx context.Context, dbTx *sql.Tx, t *models.Transaction, now time.Time) error

// SettlementService is the only writer of terminal transaction status and
// of the running totals.
type SettlementService struct {
	db       *sql.DB
	audit    *audit.AuditLogger
	log      zerolog.Logger
	cadence  time.Duration
	now      func() time.Time
	appliers map[models.TransactionKind]applyFunc
}

func NewSettlementService(db *sql.DB, auditLogger *audit.AuditLogger, log zerolog.Logger, cadence time.Duration) *SettlementService {
	s := &SettlementService{
		db:      db,
		audit:   auditLogger,
		log:     log.With().Str("component", "settlement").Logger(),
		cadence: cadence,
		now:     time.Now,
	}
	s.appliers = map[models.TransactionKind]applyFunc{
		models.KindContribution:   s.applyContribution,
		models.KindSaving:         s.applySaving,
		models.KindLoanRepayment:  s.applyLoanRepayment,
		models.KindPenaltyPayment: s.applyPenaltyPayment,
	}
	return s
}

// Settle completes a pending transaction and applies its effects exactly
// once. The conditional update decides the winner when the poller and the
// callback race.
func (s *SettlementService) Settle(ctx context.Context, transactionID int64, receiptRef string) (bool, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer dbTx.Rollback()

	now := s.now().UTC()

	var t models.Transaction
	err = dbTx.QueryRowContext(ctx, `
		UPDATE transactions
		SET status = 'completed', receipt_ref = $2, settled_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING id, kind, user_id, amount, loan_id, missed_contribution_id`,
		transactionID, nullIfEmpty(receiptRef), now,
	).Scan(&t.ID, &t.Kind, &t.UserID, &t.Amount, &t.LoanID, &t.MissedContributionID)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Debug().Int64("transaction_id", transactionID).Msg("settlement skipped, transaction already terminal")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete transaction %d: %w", transactionID, err)
	}

	apply, ok := s.appliers[t.Kind]
	if !ok {
		return false, fmt.Errorf("no settlement for transaction kind %q", t.Kind)
	}
	if err := apply(ctx, dbTx, &t, now); err != nil {
		s.audit.LogError(t.ID, t.UserID, err)
		return false, fmt.Errorf("settle %s %d: %w", t.Kind, t.ID, err)
	}

	if err := dbTx.Commit(); err != nil {
		s.audit.LogError(t.ID, t.UserID, err)
		return false, fmt.Errorf("commit settlement %d: %w", t.ID, err)
	}

	s.audit.LogSettlement(t.ID, t.UserID, string(t.Kind), t.Amount, string(models.StatusCompleted), receiptRef)
	return true, nil
}

// Fail marks a pending transaction failed. Totals are untouched.
func (s *SettlementService) Fail(ctx context.Context, transactionID int64, reason string) (bool, error) {
	now := s.now().UTC()

	var t models.Transaction
	err := s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET status = 'failed', failure_reason = $2, settled_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING id, kind, user_id, amount`,
		transactionID, reason, now,
	).Scan(&t.ID, &t.Kind, &t.UserID, &t.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fail transaction %d: %w", transactionID, err)
	}

	s.audit.LogSettlement(t.ID, t.UserID, string(t.Kind), t.Amount, string(models.StatusFailed), "")
	s.log.Info().Int64("transaction_id", t.ID).Str("reason", reason).Msg("transaction failed")
	return true, nil
}

func (s *SettlementService) applyContribution(ctx context.Context, dbTx *sql.Tx, t *models.Transaction, now time.Time) error {
	if _, err := dbTx.ExecContext(ctx, `UPDATE transactions SET next_allowed_at = $2 WHERE id = $1`,
		t.ID, now.Add(s.cadence)); err != nil {
		return err
	}

	if err := incrementUserTotal(ctx, dbTx, "total_contributions", t); err != nil {
		return err
	}

	if _, err := dbTx.ExecContext(ctx, `UPDATE users SET consecutive_misses = 0 WHERE id = $1`, t.UserID); err != nil {
		return err
	}

	// one contribution clears at most one missed day, oldest first; days with
	// a penalty payment in flight are left for that payment to clear
	result, err := dbTx.ExecContext(ctx, `
		UPDATE missed_contributions SET is_paid = TRUE, paid_at = $2
		WHERE id = (
			SELECT m.id FROM missed_contributions m
			WHERE m.user_id = $1 AND m.is_paid = FALSE
			AND NOT EXISTS (
				SELECT 1 FROM transactions p
				WHERE p.missed_contribution_id = m.id
				AND p.kind = 'penalty_payment' AND p.status = 'pending'
			)
			ORDER BY m.missed_date
			LIMIT 1
			FOR UPDATE
		)`, t.UserID, now)
	if err != nil {
		return err
	}
	if cleared, _ := result.RowsAffected(); cleared > 0 {
		s.log.Info().Int64("user_id", t.UserID).Msg("contribution cleared oldest missed day")
	}
	return nil
}

func (s *SettlementService) applySaving(ctx context.Context, dbTx *sql.Tx, t *models.Transaction, _ time.Time) error {
	return incrementUserTotal(ctx, dbTx, "total_savings", t)
}

func (s *SettlementService) applyLoanRepayment(ctx context.Context, dbTx *sql.Tx, t *models.Transaction, now time.Time) error {
	if t.LoanID == nil {
		return errors.New("loan repayment without loan")
	}

	loan, err := lockLoan(ctx, dbTx, *t.LoanID)
	if err != nil {
		return err
	}

	paid := loan.AmountPaid.Add(t.Amount)
	status := loan.Status
	if paid.GreaterThanOrEqual(loan.TotalAmount) {
		status = models.LoanPaid
	}

	if _, err := dbTx.ExecContext(ctx, `
		UPDATE loans SET amount_paid = $2, status = $3, updated_at = $4
		WHERE id = $1`, loan.ID, paid, status, now); err != nil {
		return err
	}

	if status == models.LoanPaid && loan.Status != models.LoanPaid {
		s.log.Info().Int64("loan_id", loan.ID).Str("amount_paid", paid.StringFixed(2)).Msg("loan fully repaid")
	}

	return incrementUserTotal(ctx, dbTx, "total_loans", t)
}

func (s *SettlementService) applyPenaltyPayment(ctx context.Context, dbTx *sql.Tx, t *models.Transaction, now time.Time) error {
	if t.MissedContributionID == nil {
		return errors.New("penalty payment without missed contribution")
	}

	result, err := dbTx.ExecContext(ctx, `
		UPDATE missed_contributions SET is_paid = TRUE, paid_at = $2
		WHERE id = $1 AND is_paid = FALSE`, *t.MissedContributionID, now)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		s.log.Warn().
			Int64("transaction_id", t.ID).
			Int64("missed_contribution_id", *t.MissedContributionID).
			Msg("penalty was already cleared before its payment settled")
	}
	return nil
}

// incrementUserTotal applies an atomic in-place increment so concurrent
// settlements for the same member never lose an update.
func incrementUserTotal(ctx context.Context, dbTx *sql.Tx, column string, t *models.Transaction) error {
	result, err := dbTx.ExecContext(ctx,
		`UPDATE users SET `+column+` = `+column+` + $1 WHERE id = $2`, t.Amount, t.UserID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", t.UserID, ErrNotFound)
	}
	return nil
}

func lockLoan(ctx context.Context, dbTx *sql.Tx, loanID int64) (*models.Loan, error) {
	row := dbTx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, loanID)
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", loanID, ErrNotFound)
	}
	return loan, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
