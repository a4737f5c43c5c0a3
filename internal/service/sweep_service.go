package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// Sweeper runs an abandoned-cart sweep on demand. *scheduler.Sweeper implements it.
type Sweeper interface {
	Sweep(ctx context.Context, trigger storage.SweepTrigger) (scheduler.SweepResult, error)
}

// SweepService defines the operator actions on the abandoned-cart sweeper.
type SweepService interface {
	RunSweep(ctx context.Context) (scheduler.SweepResult, error)
	ListSweepRuns(ctx context.Context, limit int) ([]*storage.SweepRun, error)
}

type sweepService struct {
	sweeper Sweeper
	runs    storage.SweepRunStore
	logger  *slog.Logger
}

// NewSweepService returns a SweepService.
func NewSweepService(sweeper Sweeper, runs storage.SweepRunStore, logger *slog.Logger) SweepService {
	return &sweepService{sweeper: sweeper, runs: runs, logger: logger}
}

func (s *sweepService) RunSweep(ctx context.Context) (scheduler.SweepResult, error) {
	res, err := s.sweeper.Sweep(ctx, storage.SweepTriggerManual)
	if errors.Is(err, scheduler.ErrSweepLocked) {
		return res, &ConflictError{Resource: "sweep", ID: "abandoned-cart", Message: "a sweep is already running"}
	}
	if err != nil {
		return res, fmt.Errorf("running sweep: %w", err)
	}
	s.logger.Info("manual sweep finished", "run_id", res.RunID, "notified", res.CartsNotified)
	return res, nil
}

func (s *sweepService) ListSweepRuns(ctx context.Context, limit int) ([]*storage.SweepRun, error) {
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.runs.ListSweepRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sweep runs: %w", err)
	}
	return runs, nil
}
