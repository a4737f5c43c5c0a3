package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kiranaconnect/kirana/internal/service"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// MockCartService is a mock implementation of service.CartService.
type MockCartService struct {
	mock.Mock
}

//nolint:revive
func (m *MockCartService) CreateBuyer(ctx context.Context, in service.CreateBuyerInput) (*storage.Buyer, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Buyer), args.Error(1)
}

//nolint:revive
func (m *MockCartService) GetCart(ctx context.Context, buyerID string) (*storage.Cart, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Cart), args.Error(1)
}

//nolint:revive
func (m *MockCartService) AddItem(ctx context.Context, buyerID string, in service.AddItemInput) (*storage.Cart, error) {
	args := m.Called(ctx, buyerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Cart), args.Error(1)
}

//nolint:revive
func (m *MockCartService) UpdateQuantity(ctx context.Context, buyerID, itemID string, quantity int) (*storage.Cart, error) {
	args := m.Called(ctx, buyerID, itemID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Cart), args.Error(1)
}

//nolint:revive
func (m *MockCartService) RemoveItem(ctx context.Context, buyerID, itemID string) (*storage.Cart, error) {
	args := m.Called(ctx, buyerID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Cart), args.Error(1)
}

//nolint:revive
func (m *MockCartService) ClearCart(ctx context.Context, buyerID string) (*storage.Cart, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Cart), args.Error(1)
}

//nolint:revive
func (m *MockCartService) SetNotificationsPaused(ctx context.Context, buyerID, itemID string, paused bool) (*storage.CartItem, error) {
	args := m.Called(ctx, buyerID, itemID, paused)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.CartItem), args.Error(1)
}

//nolint:revive
func (m *MockCartService) ListNotifications(ctx context.Context, buyerID string) ([]storage.Notification, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Notification), args.Error(1)
}

//nolint:revive
func (m *MockCartService) MarkNotificationRead(ctx context.Context, buyerID, notificationID string) (*storage.Notification, error) {
	args := m.Called(ctx, buyerID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Notification), args.Error(1)
}

//nolint:revive
func (m *MockCartService) TriggerManualNotification(ctx context.Context, buyerID string) (*storage.Notification, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Notification), args.Error(1)
}
