package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chamapay/backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testPhone = "0712345678"

type paymentsFixture struct {
	deps      PaymentDeps
	mock      sqlmock.Sqlmock
	gateway   *MockGateway
	settler   *MockSettler
	scheduler *MockScheduler
}

func newPaymentsFixture(t *testing.T) *paymentsFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &paymentsFixture{
		mock:      mock,
		gateway:   new(MockGateway),
		settler:   new(MockSettler),
		scheduler: new(MockScheduler),
	}
	f.deps = PaymentDeps{
		Store:     NewLedgerStore(db),
		Gateway:   f.gateway,
		Settler:   f.settler,
		Scheduler: f.scheduler,
		Log:       zerolog.Nop(),
	}
	return f
}

func (f *paymentsFixture) assertAll(t *testing.T) {
	t.Helper()
	require.NoError(t, f.mock.ExpectationsWereMet())
	f.gateway.AssertExpectations(t)
	f.settler.AssertExpectations(t)
	f.scheduler.AssertExpectations(t)
}

func testCadenceConfig() *config.CadenceConfig {
	return &config.CadenceConfig{
		DefaultAmount: 20,
		Interval:      24 * time.Hour,
		Timezone:      "Africa/Nairobi",
		CutoffHour:    0,
		PenaltyTiers:  []float64{50, 100, 150},
	}
}

func testLoanConfig() *config.LoanConfig {
	return &config.LoanConfig{
		InterestRate:    0.10,
		PenaltyRate:     0.05,
		MinAmount:       100,
		MaxAmount:       100000,
		RepaymentWindow: 30 * 24 * time.Hour,
		SweepInterval:   time.Hour,
	}
}
