package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/kiranaconnect/kirana/internal/storage"
)

// MockReminderHooks is a mock implementation of service.ReminderHooks.
type MockReminderHooks struct {
	mock.Mock
}

//nolint:revive
func (m *MockReminderHooks) OnItemAdded(buyerID, itemID string) {
	m.Called(buyerID, itemID)
}

//nolint:revive
func (m *MockReminderHooks) OnItemQuantityChanged(buyerID string, item *storage.CartItem) {
	m.Called(buyerID, item)
}

//nolint:revive
func (m *MockReminderHooks) OnItemRemoved(buyerID, itemID string) {
	m.Called(buyerID, itemID)
}

//nolint:revive
func (m *MockReminderHooks) OnCartCleared(buyerID string) {
	m.Called(buyerID)
}

//nolint:revive
func (m *MockReminderHooks) OnNotificationsToggled(buyerID string, item *storage.CartItem, paused bool) {
	m.Called(buyerID, item, paused)
}
