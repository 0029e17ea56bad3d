package mocks

import (
	"context"

	"paygate/internal/model"
	"paygate/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByProviderTrxID(ctx context.Context, trxID string) (*model.Payment, error) {
	args := m.Called(ctx, trxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Payment], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Payment]), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *model.Payment, prev model.Status) error {
	args := m.Called(ctx, p, prev)
	return args.Error(0)
}
