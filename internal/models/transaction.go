package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindContribution   TransactionKind = "contribution"
	KindSaving         TransactionKind = "saving"
	KindLoanRepayment  TransactionKind = "loan_repayment"
	KindPenaltyPayment TransactionKind = "penalty_payment"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is one money movement routed through the payment gateway.
// Kind-specific columns are only set for their kind.
type Transaction struct {
	ID            int64             `json:"id" db:"id"`
	Kind          TransactionKind   `json:"kind" db:"kind"`
	UserID        int64             `json:"userId" db:"user_id"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Status        TransactionStatus `json:"status" db:"status"`
	CorrelationID *string           `json:"correlationId,omitempty" db:"correlation_id"`
	ReceiptRef    *string           `json:"receiptRef,omitempty" db:"receipt_ref"`
	Reference     string            `json:"reference" db:"reference"`
	FailureReason *string           `json:"failureReason,omitempty" db:"failure_reason"`

	// contribution
	NextAllowedAt *time.Time `json:"nextAllowedAt,omitempty" db:"next_allowed_at"`
	// saving
	Description *string `json:"description,omitempty" db:"description"`
	// loan_repayment
	LoanID *int64 `json:"loanId,omitempty" db:"loan_id"`
	// penalty_payment
	MissedContributionID *int64 `json:"missedContributionId,omitempty" db:"missed_contribution_id"`

	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	SettledAt *time.Time `json:"settledAt,omitempty" db:"settled_at"`
}

func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// GatewayReference is the account reference sent with the payment prompt.
func GatewayReference(kind TransactionKind, id int64) string {
	switch kind {
	case KindContribution:
		return fmt.Sprintf("CONT-%d", id)
	case KindSaving:
		return fmt.Sprintf("SAVE-%d", id)
	case KindLoanRepayment:
		return fmt.Sprintf("LOAN-%d", id)
	case KindPenaltyPayment:
		return fmt.Sprintf("PEN-%d", id)
	}
	return fmt.Sprintf("TX-%d", id)
}
