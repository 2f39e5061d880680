package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/gateway"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidPhone            = gateway.ErrInvalidPhone
	ErrInvalidLoanRequest      = errors.New("invalid loan request")
	ErrCadence                 = errors.New("contribution window has not reopened yet")
	ErrContributionInFlight    = errors.New("a contribution is already awaiting confirmation")
	ErrOpenLoanExists          = errors.New("user already has an open loan")
	ErrLoanNotActive           = errors.New("loan is not accepting repayments")
	ErrLoanNotPending          = errors.New("loan is not pending")
	ErrRepaymentExceedsBalance = errors.New("repayment exceeds outstanding balance")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrPenaltyAlreadyPaid      = errors.New("penalty already paid")
	ErrPenaltyPaymentInFlight  = errors.New("a payment for this penalty is already awaiting confirmation")
	ErrTransactionPending      = errors.New("transaction is still pending")
)

// CadenceError carries the time a member may contribute again.
type CadenceError struct {
	NextAllowedAt time.Time
}

func (e *CadenceError) Error() string {
	return fmt.Sprintf("%s: next contribution allowed at %s", ErrCadence, e.NextAllowedAt.Format(time.RFC3339))
}

func (e *CadenceError) Is(target error) bool {
	return target == ErrCadence
}
