package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/service"
	"github.com/kiranaconnect/kirana/internal/storage"
	storagemocks "github.com/kiranaconnect/kirana/internal/storage/mocks"
)

type stubSweeper struct {
	res     scheduler.SweepResult
	err     error
	trigger storage.SweepTrigger
}

func (s *stubSweeper) Sweep(_ context.Context, trigger storage.SweepTrigger) (scheduler.SweepResult, error) {
	s.trigger = trigger
	return s.res, s.err
}

func TestRunSweep(t *testing.T) {
	sw := &stubSweeper{res: scheduler.SweepResult{RunID: "r1", CartsScanned: 3, CartsNotified: 2}}
	svc := service.NewSweepService(sw, new(storagemocks.MockSweepRunStore), logger.Discard())

	res, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.CartsNotified)
	assert.Equal(t, storage.SweepTriggerManual, sw.trigger)
}

func TestRunSweep_Errors(t *testing.T) {
	sw := &stubSweeper{err: scheduler.ErrSweepLocked}
	svc := service.NewSweepService(sw, new(storagemocks.MockSweepRunStore), logger.Discard())

	_, err := svc.RunSweep(context.Background())
	var ce *service.ConflictError
	assert.ErrorAs(t, err, &ce)

	sw.err = errors.New("db down")
	_, err = svc.RunSweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "running sweep")
}

func TestListSweepRuns_DefaultLimit(t *testing.T) {
	runs := new(storagemocks.MockSweepRunStore)
	runs.On("ListSweepRuns", mock.Anything, 50).Return([]*storage.SweepRun{{ID: "r1"}}, nil)

	svc := service.NewSweepService(&stubSweeper{}, runs, logger.Discard())
	got, err := svc.ListSweepRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	runs.AssertExpectations(t)
}
