package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissedContribution records a calendar day with no completed contribution.
type MissedContribution struct {
	ID                int64           `json:"id" db:"id"`
	UserID            int64           `json:"userId" db:"user_id"`
	MissedDate        time.Time       `json:"missedDate" db:"missed_date"`
	ConsecutiveMisses int             `json:"consecutiveMisses" db:"consecutive_misses"`
	PenaltyAmount     decimal.Decimal `json:"penaltyAmount" db:"penalty_amount"`
	IsPaid            bool            `json:"isPaid" db:"is_paid"`
	PaidAt            *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}
