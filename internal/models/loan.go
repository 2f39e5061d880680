package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
	LoanPaid     LoanStatus = "paid"
	LoanOverdue  LoanStatus = "overdue"
)

// Loan tracks a member loan. BaseTotalAmount is principal plus interest,
// frozen at application; TotalAmount adds the overdue penalty on top.
type Loan struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"userId" db:"user_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	InterestRate    decimal.Decimal `json:"interestRate" db:"interest_rate"`
	BaseTotalAmount decimal.Decimal `json:"baseTotalAmount" db:"base_total_amount"`
	TotalAmount     decimal.Decimal `json:"totalAmount" db:"total_amount"`
	AmountPaid      decimal.Decimal `json:"amountPaid" db:"amount_paid"`
	Status          LoanStatus      `json:"status" db:"status"`
	DurationMonths  int             `json:"durationMonths" db:"duration_months"`
	Usage           string          `json:"loanUsage" db:"usage"`
	RejectionReason *string         `json:"rejectionReason,omitempty" db:"rejection_reason"`
	ApprovedBy      *int64          `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty" db:"approved_at"`
	DueDate         *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	OverdueDays     int             `json:"overdueDays" db:"overdue_days"`
	OverduePenalty  decimal.Decimal `json:"overduePenalty" db:"overdue_penalty"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// IsOpen reports whether the loan blocks a new application.
func (l *Loan) IsOpen() bool {
	return l.Status == LoanPending || l.Status == LoanApproved || l.Status == LoanOverdue
}

// AcceptsRepayment reports whether money can still be paid against the loan.
func (l *Loan) AcceptsRepayment() bool {
	return l.Status == LoanApproved || l.Status == LoanOverdue
}

func (l *Loan) Outstanding() decimal.Decimal {
	out := l.TotalAmount.Sub(l.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
