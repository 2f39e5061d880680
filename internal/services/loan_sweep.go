package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/models"
	"github.com/shopspring/decimal"
)

type OverdueSweepReport struct {
	Checked int `json:"checked"`
	Overdue int `json:"overdue"`
	Paid    int `json:"paid"`
}

// overdueTerms recomputes a loan's penalty from scratch: the outstanding
// base balance times the daily rate times whole days past due. Calling it
// again with the same inputs returns the same total.
func overdueTerms(loan *models.Loan, now time.Time, dailyRate decimal.Decimal) (int, decimal.Decimal, decimal.Decimal) {
	if loan.DueDate == nil || !now.After(*loan.DueDate) {
		return 0, decimal.Zero, loan.BaseTotalAmount
	}

	days := int(now.Sub(*loan.DueDate) / (24 * time.Hour))
	outstanding := loan.BaseTotalAmount.Sub(loan.AmountPaid)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}

	penalty := outstanding.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))).Round(2)
	return days, penalty, loan.BaseTotalAmount.Add(penalty)
}

// SweepOverdue marks past-due loans overdue and refreshes their penalty.
func (s *LoanService) SweepOverdue(ctx context.Context) (*OverdueSweepReport, error) {
	now := s.now().UTC()

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id FROM loans
		WHERE status IN ('approved', 'overdue') AND due_date < $1
		ORDER BY id`, now)
	if err != nil {
		return nil, fmt.Errorf("list past-due loans: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &OverdueSweepReport{}
	for _, id := range ids {
		status, err := s.sweepLoan(ctx, id, now)
		if err != nil {
			s.log.Error().Err(err).Int64("loan_id", id).Msg("failed to sweep loan")
			continue
		}
		report.Checked++
		switch status {
		case models.LoanOverdue:
			report.Overdue++
		case models.LoanPaid:
			report.Paid++
		}
	}

	s.log.Info().Int("checked", report.Checked).Int("overdue", report.Overdue).Int("paid", report.Paid).Msg("overdue loan sweep finished")
	return report, nil
}

func (s *LoanService) sweepLoan(ctx context.Context, loanID int64, now time.Time) (models.LoanStatus, error) {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return "", err
	}
	if !loan.AcceptsRepayment() {
		return loan.Status, tx.Commit()
	}

	days, penalty, total := overdueTerms(loan, now, decimal.NewFromFloat(s.cfg.PenaltyRate))

	status := models.LoanOverdue
	if loan.AmountPaid.GreaterThanOrEqual(total) {
		status = models.LoanPaid
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE loans SET total_amount = $2, overdue_days = $3, overdue_penalty = $4, status = $5, updated_at = $6
		WHERE id = $1`, loan.ID, total, days, penalty, status, now); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return status, nil
}
