package models

import (
	"github.com/shopspring/decimal"
)

// TotalsDrift compares a member's cached totals with the sums recomputed
// from the transaction log.
type TotalsDrift struct {
	UserID                int64           `json:"userId"`
	CachedContributions   decimal.Decimal `json:"cachedContributions"`
	ComputedContributions decimal.Decimal `json:"computedContributions"`
	CachedSavings         decimal.Decimal `json:"cachedSavings"`
	ComputedSavings       decimal.Decimal `json:"computedSavings"`
	CachedLoans           decimal.Decimal `json:"cachedLoans"`
	ComputedLoans         decimal.Decimal `json:"computedLoans"`
}

func (d TotalsDrift) HasDrift() bool {
	return !d.CachedContributions.Equal(d.ComputedContributions) ||
		!d.CachedSavings.Equal(d.ComputedSavings) ||
		!d.CachedLoans.Equal(d.ComputedLoans)
}

type GroupStats struct {
	Members            int             `json:"members"`
	TotalContributions decimal.Decimal `json:"totalContributions"`
	TotalSavings       decimal.Decimal `json:"totalSavings"`
	TotalLoansRepaid   decimal.Decimal `json:"totalLoansRepaid"`
	PendingLoans       int             `json:"pendingLoans"`
	ActiveLoans        int             `json:"activeLoans"`
	OverdueLoans       int             `json:"overdueLoans"`
	UnpaidPenalties    decimal.Decimal `json:"unpaidPenalties"`
}
