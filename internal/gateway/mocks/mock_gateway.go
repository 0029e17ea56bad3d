package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"paygate/internal/gateway"
	"paygate/internal/model"
)

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Authorize(ctx context.Context, p *model.Payment) (*gateway.Outcome, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

func (m *MockPaymentGateway) Capture(ctx context.Context, providerTrxID string, amount model.Money) (*gateway.Outcome, error) {
	args := m.Called(ctx, providerTrxID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

func (m *MockPaymentGateway) Refund(ctx context.Context, providerTrxID string, amount model.Money) (*gateway.Outcome, error) {
	args := m.Called(ctx, providerTrxID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}
