package services

import (
	"context"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chamapay/backend/internal/gateway"
	"github.com/chamapay/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	txColumns = []string{"id", "kind", "user_id", "amount", "status", "correlation_id", "receipt_ref",
		"reference", "failure_reason", "next_allowed_at", "description", "loan_id",
		"missed_contribution_id", "created_at", "updated_at", "settled_at"}
	loanColumnNames = []string{"id", "user_id", "amount", "interest_rate", "base_total_amount", "total_amount",
		"amount_paid", "status", "duration_months", "usage", "rejection_reason", "approved_by", "approved_at",
		"due_date", "overdue_days", "overdue_penalty", "created_at", "updated_at"}
	missedColumnNames = []string{"id", "user_id", "missed_date", "consecutive_misses", "penalty_amount",
		"is_paid", "paid_at", "created_at"}
)

// decimalEq matches a SQL argument holding the given decimal value.
type decimalEq string

func (d decimalEq) Match(v driver.Value) bool {
	want := decimal.RequireFromString(string(d))
	var raw string
	switch x := v.(type) {
	case string:
		raw = x
	case []byte:
		raw = string(x)
	default:
		raw = fmt.Sprint(x)
	}
	got, err := decimal.NewFromString(raw)
	return err == nil && got.Equal(want)
}

func strPtr(s string) *string        { return &s }
func int64Ptr(v int64) *int64        { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func orNil[T any](p *T) driver.Value {
	if p == nil {
		return nil
	}
	return *p
}

func txRows(ts ...models.Transaction) *sqlmock.Rows {
	rows := sqlmock.NewRows(txColumns)
	for _, t := range ts {
		rows.AddRow(t.ID, string(t.Kind), t.UserID, t.Amount.String(), string(t.Status), orNil(t.CorrelationID),
			orNil(t.ReceiptRef), t.Reference, orNil(t.FailureReason), orNil(t.NextAllowedAt), orNil(t.Description),
			orNil(t.LoanID), orNil(t.MissedContributionID), t.CreatedAt, t.UpdatedAt, orNil(t.SettledAt))
	}
	return rows
}

func loanRows(ls ...models.Loan) *sqlmock.Rows {
	rows := sqlmock.NewRows(loanColumnNames)
	for _, l := range ls {
		rows.AddRow(l.ID, l.UserID, l.Amount.String(), l.InterestRate.String(), l.BaseTotalAmount.String(),
			l.TotalAmount.String(), l.AmountPaid.String(), string(l.Status), l.DurationMonths, l.Usage,
			orNil(l.RejectionReason), orNil(l.ApprovedBy), orNil(l.ApprovedAt), orNil(l.DueDate), l.OverdueDays,
			l.OverduePenalty.String(), l.CreatedAt, l.UpdatedAt)
	}
	return rows
}

func missedRows(ms ...models.MissedContribution) *sqlmock.Rows {
	rows := sqlmock.NewRows(missedColumnNames)
	for _, m := range ms {
		rows.AddRow(m.ID, m.UserID, m.MissedDate, m.ConsecutiveMisses, m.PenaltyAmount.String(), m.IsPaid,
			orNil(m.PaidAt), m.CreatedAt)
	}
	return rows
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memLedger is an in-memory TransactionReader and Settler whose settle step
// is a compare-and-swap on status, like the SQL it stands in for.
type memLedger struct {
	mu     sync.Mutex
	txs    map[int64]*models.Transaction
	totals map[int64]decimal.Decimal
	wins   int
}

func newMemLedger(ts ...models.Transaction) *memLedger {
	l := &memLedger{txs: make(map[int64]*models.Transaction), totals: make(map[int64]decimal.Decimal)}
	for i := range ts {
		t := ts[i]
		l.txs[t.ID] = &t
	}
	return l
}

func (l *memLedger) GetTransaction(_ context.Context, id int64) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *memLedger) GetTransactionByCorrelation(_ context.Context, correlationID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.txs {
		if t.CorrelationID != nil && *t.CorrelationID == correlationID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (l *memLedger) PendingTransactions(_ context.Context, since time.Time) ([]PendingTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []PendingTransaction
	for id, t := range l.txs {
		if t.IsPending() && t.CorrelationID != nil && !t.CreatedAt.Before(since) {
			out = append(out, PendingTransaction{ID: id, CreatedAt: t.CreatedAt})
		}
	}
	return out, nil
}

func (l *memLedger) Settle(_ context.Context, id int64, receipt string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txs[id]
	if !ok || !t.IsPending() {
		return false, nil
	}
	t.Status = models.StatusCompleted
	t.ReceiptRef = &receipt
	l.totals[t.UserID] = l.totals[t.UserID].Add(t.Amount)
	l.wins++
	return true, nil
}

func (l *memLedger) Fail(_ context.Context, id int64, reason string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.txs[id]
	if !ok || !t.IsPending() {
		return false, nil
	}
	t.Status = models.StatusFailed
	t.FailureReason = &reason
	return true, nil
}

func (l *memLedger) total(userID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[userID]
}

type verifierFunc func(ctx context.Context, correlationID string) (gateway.VerifyResult, error)

func (f verifierFunc) Verify(ctx context.Context, correlationID string) (gateway.VerifyResult, error) {
	return f(ctx, correlationID)
}
