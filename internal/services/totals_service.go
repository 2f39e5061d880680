package services

import (
	"context"

	"github.com/chamapay/backend/internal/models"
)

// TotalsService reports on the cached running totals. It never writes them.
type TotalsService struct {
	store *LedgerStore
}

func NewTotalsService(store *LedgerStore) *TotalsService {
	return &TotalsService{store: store}
}

// Drift recomputes every member's totals from the transaction log and
// returns the members whose cached values disagree.
func (s *TotalsService) Drift(ctx context.Context) ([]models.TotalsDrift, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT u.id,
			u.total_contributions,
			COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'contribution'), 0),
			u.total_savings,
			COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'saving'), 0),
			u.total_loans,
			COALESCE(SUM(t.amount) FILTER (WHERE t.kind = 'loan_repayment'), 0)
		FROM users u
		LEFT JOIN transactions t ON t.user_id = u.id AND t.status = 'completed'
		GROUP BY u.id
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifted []models.TotalsDrift
	for rows.Next() {
		var d models.TotalsDrift
		if err := rows.Scan(&d.UserID, &d.CachedContributions, &d.ComputedContributions,
			&d.CachedSavings, &d.ComputedSavings, &d.CachedLoans, &d.ComputedLoans); err != nil {
			return nil, err
		}
		if d.HasDrift() {
			drifted = append(drifted, d)
		}
	}
	return drifted, rows.Err()
}

func (s *TotalsService) GroupStats(ctx context.Context) (*models.GroupStats, error) {
	var stats models.GroupStats
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(total_contributions), 0) FROM users),
			(SELECT COALESCE(SUM(total_savings), 0) FROM users),
			(SELECT COALESCE(SUM(total_loans), 0) FROM users),
			(SELECT COUNT(*) FROM loans WHERE status = 'pending'),
			(SELECT COUNT(*) FROM loans WHERE status = 'approved'),
			(SELECT COUNT(*) FROM loans WHERE status = 'overdue'),
			(SELECT COALESCE(SUM(penalty_amount), 0) FROM missed_contributions WHERE is_paid = FALSE)`,
	).Scan(&stats.Members, &stats.TotalContributions, &stats.TotalSavings, &stats.TotalLoansRepaid,
		&stats.PendingLoans, &stats.ActiveLoans, &stats.OverdueLoans, &stats.UnpaidPenalties)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
