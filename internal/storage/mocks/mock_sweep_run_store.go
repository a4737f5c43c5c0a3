package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kiranaconnect/kirana/internal/storage"
)

// MockSweepRunStore is a mock implementation of storage.SweepRunStore.
type MockSweepRunStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockSweepRunStore) CreateSweepRun(ctx context.Context, run *storage.SweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

//nolint:revive
func (m *MockSweepRunStore) UpdateSweepRun(ctx context.Context, run *storage.SweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

//nolint:revive
func (m *MockSweepRunStore) ListSweepRuns(ctx context.Context, limit int) ([]*storage.SweepRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.SweepRun), args.Error(1)
}
