package services

import (
	"context"

	"github.com/chamapay/backend/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initiate(ctx context.Context, phone string, amount decimal.Decimal, reference string) (gateway.InitiateResult, error) {
	args := m.Called(phone, amount.String(), reference)
	return args.Get(0).(gateway.InitiateResult), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, correlationID string) (gateway.VerifyResult, error) {
	args := m.Called(correlationID)
	return args.Get(0).(gateway.VerifyResult), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, transactionID int64) error {
	args := m.Called(transactionID)
	return args.Error(0)
}

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, transactionID int64, receiptRef string) (bool, error) {
	args := m.Called(transactionID, receiptRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettler) Fail(ctx context.Context, transactionID int64, reason string) (bool, error) {
	args := m.Called(transactionID, reason)
	return args.Bool(0), args.Error(1)
}
