package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kiranaconnect/kirana/internal/storage"
)

// MockBuyerStore is a mock implementation of storage.BuyerStore.
type MockBuyerStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockBuyerStore) FindByID(ctx context.Context, id string) (*storage.Buyer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Buyer), args.Error(1)
}

//nolint:revive
func (m *MockBuyerStore) Create(ctx context.Context, b *storage.Buyer) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

//nolint:revive
func (m *MockBuyerStore) Save(ctx context.Context, b *storage.Buyer) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

//nolint:revive
func (m *MockBuyerStore) FindCartsOlderThan(ctx context.Context, cutoff time.Time) ([]*storage.Buyer, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.Buyer), args.Error(1)
}

//nolint:revive
func (m *MockBuyerStore) ListActiveCarts(ctx context.Context) ([]*storage.Buyer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.Buyer), args.Error(1)
}
