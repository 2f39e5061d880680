package handlers

import (
	"context"

	"github.com/chamapay/backend/internal/models"
	"github.com/chamapay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockContributionService struct {
	mock.Mock
}

func (m *MockContributionService) InitiateContribution(ctx context.Context, userID int64, amount decimal.Decimal, phone string) (*services.InitiateResult, error) {
	args := m.Called(userID, amount.String(), phone)
	res, _ := args.Get(0).(*services.InitiateResult)
	return res, args.Error(1)
}

func (m *MockContributionService) InitiatePenaltyPayment(ctx context.Context, userID, missedID int64, phone string) (*services.InitiateResult, error) {
	args := m.Called(userID, missedID, phone)
	res, _ := args.Get(0).(*services.InitiateResult)
	return res, args.Error(1)
}

func (m *MockContributionService) ListUnpaidPenalties(ctx context.Context, userID int64) ([]models.MissedContribution, error) {
	args := m.Called(userID)
	items, _ := args.Get(0).([]models.MissedContribution)
	return items, args.Error(1)
}

func (m *MockContributionService) ListContributions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	args := m.Called(userID, limit)
	items, _ := args.Get(0).([]models.Transaction)
	return items, args.Error(1)
}

type MockSavingsService struct {
	mock.Mock
}

func (m *MockSavingsService) InitiateSaving(ctx context.Context, userID int64, amount decimal.Decimal, phone, description string) (*services.InitiateResult, error) {
	args := m.Called(userID, amount.String(), phone, description)
	res, _ := args.Get(0).(*services.InitiateResult)
	return res, args.Error(1)
}

func (m *MockSavingsService) DeleteSaving(ctx context.Context, userID, savingID int64) error {
	return m.Called(userID, savingID).Error(0)
}

func (m *MockSavingsService) ListSavings(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	args := m.Called(userID, limit)
	items, _ := args.Get(0).([]models.Transaction)
	return items, args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) ApplyForLoan(ctx context.Context, userID int64, amount decimal.Decimal, durationMonths int, usage string) (*models.Loan, error) {
	args := m.Called(userID, amount.String(), durationMonths, usage)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *MockLoanService) ApproveLoan(ctx context.Context, loanID, adminID int64) (*models.Loan, error) {
	args := m.Called(loanID, adminID)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *MockLoanService) RejectLoan(ctx context.Context, loanID, adminID int64, reason string) (*models.Loan, error) {
	args := m.Called(loanID, adminID, reason)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *MockLoanService) InitiateLoanRepayment(ctx context.Context, userID, loanID int64, amount decimal.Decimal, phone string) (*services.InitiateResult, error) {
	args := m.Called(userID, loanID, amount.String(), phone)
	res, _ := args.Get(0).(*services.InitiateResult)
	return res, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, userID, loanID int64) (*models.Loan, error) {
	args := m.Called(userID, loanID)
	loan, _ := args.Get(0).(*models.Loan)
	return loan, args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	args := m.Called(userID)
	loans, _ := args.Get(0).([]models.Loan)
	return loans, args.Error(1)
}

func (m *MockLoanService) ListLoansByStatus(ctx context.Context, status models.LoanStatus, limit int) ([]models.Loan, error) {
	args := m.Called(string(status), limit)
	loans, _ := args.Get(0).([]models.Loan)
	return loans, args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyForUser(ctx context.Context, userID int64, correlationID string) (*models.Transaction, error) {
	args := m.Called(userID, correlationID)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

type MockTotals struct {
	mock.Mock
}

func (m *MockTotals) GroupStats(ctx context.Context) (*models.GroupStats, error) {
	args := m.Called()
	stats, _ := args.Get(0).(*models.GroupStats)
	return stats, args.Error(1)
}

func (m *MockTotals) Drift(ctx context.Context) ([]models.TotalsDrift, error) {
	args := m.Called()
	drift, _ := args.Get(0).([]models.TotalsDrift)
	return drift, args.Error(1)
}

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) HandleGatewayCallback(ctx context.Context, raw []byte) services.CallbackAck {
	return m.Called(string(raw)).Get(0).(services.CallbackAck)
}
