package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chamapay/backend/internal/models"
)

const (
	transactionColumns = `id, kind, user_id, amount, status, correlation_id, receipt_ref, reference, failure_reason,
		next_allowed_at, description, loan_id, missed_contribution_id, created_at, updated_at, settled_at`
	loanColumns = `id, user_id, amount, interest_rate, base_total_amount, total_amount, amount_paid, status,
		duration_months, usage, rejection_reason, approved_by, approved_at, due_date, overdue_days,
		overdue_penalty, created_at, updated_at`
	missedColumns = `id, user_id, missed_date, consecutive_misses, penalty_amount, is_paid, paid_at, created_at`
	userColumns   = `id, name, email, phone, role, total_contributions, total_savings, total_loans,
		consecutive_misses, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// TransactionReader is the read side the reconciliation paths depend on.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionByCorrelation(ctx context.Context, correlationID string) (*models.Transaction, error)
}

// LedgerStore owns every persisted row of the ledger. Balance columns are
// never written here; settlement mutates them.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) DB() *sql.DB {
	return s.db
}

func (s *LedgerStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.TotalContributions,
		&u.TotalSavings, &u.TotalLoans, &u.ConsecutiveMisses, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateTransaction inserts a pending row and fills in its id and timestamps.
func (s *LedgerStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (kind, user_id, amount, status, description, loan_id, missed_contribution_id, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $7)
		RETURNING id`,
		t.Kind, t.UserID, t.Amount, t.Description, t.LoanID, t.MissedContributionID, now).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("create %s transaction: %w", t.Kind, err)
	}

	t.Status = models.StatusPending
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// AttachCorrelation records the gateway's id on a still-pending transaction.
func (s *LedgerStore) AttachCorrelation(ctx context.Context, id int64, correlationID, reference string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET correlation_id = $2, reference = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'`,
		id, correlationID, reference, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("attach correlation to transaction %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %d is no longer pending", id)
	}
	return nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *LedgerStore) GetTransactionByCorrelation(ctx context.Context, correlationID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE correlation_id = $1`, correlationID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction with correlation %q: %w", correlationID, ErrNotFound)
	}
	return t, err
}

func (s *LedgerStore) ListUserTransactions(ctx context.Context, userID int64, kind models.TransactionKind, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// PendingTransactions lists pending transactions that reached the gateway
// after since. Used to rebuild the reconciliation queue on start-up.
func (s *LedgerStore) PendingTransactions(ctx context.Context, since time.Time) ([]PendingTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at FROM transactions
		WHERE status = 'pending' AND correlation_id IS NOT NULL AND created_at >= $1
		ORDER BY created_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingTransaction
	for rows.Next() {
		var p PendingTransaction
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestCompletedContribution returns nil when the user has never contributed.
func (s *LedgerStore) LatestCompletedContribution(ctx context.Context, userID int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND kind = 'contribution' AND status = 'completed'
		ORDER BY settled_at DESC
		LIMIT 1`, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *LedgerStore) HasPendingContribution(ctx context.Context, userID int64, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $1 AND kind = 'contribution' AND status = 'pending' AND created_at >= $2
		)`, userID, since).Scan(&exists)
	return exists, err
}

// HasPendingPenaltyPayment reports whether a payment for the missed day is
// still awaiting the gateway.
func (s *LedgerStore) HasPendingPenaltyPayment(ctx context.Context, missedID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE missed_contribution_id = $1 AND kind = 'penalty_payment' AND status = 'pending'
		)`, missedID).Scan(&exists)
	return exists, err
}

func (s *LedgerStore) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	return l, err
}

func (s *LedgerStore) HasOpenLoan(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM loans WHERE user_id = $1 AND status IN ('pending', 'approved', 'overdue')
		)`, userID).Scan(&exists)
	return exists, err
}

func (s *LedgerStore) ListUserLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// ListLoansByStatus lists loans across all members, newest first. An empty
// status lists every loan.
func (s *LedgerStore) ListLoansByStatus(ctx context.Context, status models.LoanStatus, limit int) ([]models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *LedgerStore) GetMissedContribution(ctx context.Context, id int64) (*models.MissedContribution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+missedColumns+` FROM missed_contributions WHERE id = $1`, id)
	m, err := scanMissed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("missed contribution %d: %w", id, ErrNotFound)
	}
	return m, err
}

func (s *LedgerStore) ListUnpaidMissed(ctx context.Context, userID int64) ([]models.MissedContribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+missedColumns+` FROM missed_contributions
		WHERE user_id = $1 AND is_paid = FALSE
		ORDER BY missed_date`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MissedContribution
	for rows.Next() {
		m, err := scanMissed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// DeleteSaving removes a terminal saving and, when it had been credited,
// takes its amount back off the member's savings total.
func (s *LedgerStore) DeleteSaving(ctx context.Context, userID, savingID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var saving models.Transaction
	err = tx.QueryRowContext(ctx, `
		SELECT id, amount, status FROM transactions
		WHERE id = $1 AND user_id = $2 AND kind = 'saving'
		FOR UPDATE`, savingID, userID).Scan(&saving.ID, &saving.Amount, &saving.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("saving %d: %w", savingID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if saving.IsPending() {
		return fmt.Errorf("saving %d: %w", savingID, ErrTransactionPending)
	}

	if saving.Status == models.StatusCompleted {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET total_savings = GREATEST(total_savings - $1, 0)
			WHERE id = $2`, saving.Amount, userID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, savingID); err != nil {
		return err
	}

	return tx.Commit()
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Kind, &t.UserID, &t.Amount, &t.Status, &t.CorrelationID, &t.ReceiptRef,
		&t.Reference, &t.FailureReason, &t.NextAllowedAt, &t.Description, &t.LoanID,
		&t.MissedContributionID, &t.CreatedAt, &t.UpdatedAt, &t.SettledAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanLoan(row scanner) (*models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.UserID, &l.Amount, &l.InterestRate, &l.BaseTotalAmount, &l.TotalAmount,
		&l.AmountPaid, &l.Status, &l.DurationMonths, &l.Usage, &l.RejectionReason, &l.ApprovedBy,
		&l.ApprovedAt, &l.DueDate, &l.OverdueDays, &l.OverduePenalty, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanMissed(row scanner) (*models.MissedContribution, error) {
	var m models.MissedContribution
	err := row.Scan(&m.ID, &m.UserID, &m.MissedDate, &m.ConsecutiveMisses, &m.PenaltyAmount,
		&m.IsPaid, &m.PaidAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
