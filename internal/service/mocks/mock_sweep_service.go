package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// MockSweepService is a mock implementation of service.SweepService.
type MockSweepService struct {
	mock.Mock
}

//nolint:revive
func (m *MockSweepService) RunSweep(ctx context.Context) (scheduler.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(scheduler.SweepResult), args.Error(1)
}

//nolint:revive
func (m *MockSweepService) ListSweepRuns(ctx context.Context, limit int) ([]*storage.SweepRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.SweepRun), args.Error(1)
}
