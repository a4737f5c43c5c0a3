package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSweepRunStore implements SweepRunStore on PostgreSQL. The table is
// created by PostgresBuyerStore.EnsureSchema.
type PostgresSweepRunStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSweepRunStore returns a store backed by pool.
func NewPostgresSweepRunStore(pool *pgxpool.Pool) *PostgresSweepRunStore {
	return &PostgresSweepRunStore{pool: pool}
}

// CreateSweepRun inserts a new sweep run record.
func (s *PostgresSweepRunStore) CreateSweepRun(ctx context.Context, run *SweepRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sweep_runs
			(id, trigger, status, started_at, finished_at, duration_ms,
			 carts_scanned, carts_notified, failures, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, string(run.Trigger), string(run.Status), run.StartedAt, run.FinishedAt, run.DurationMS,
		run.CartsScanned, run.CartsNotified, run.Failures, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("creating sweep run: %w", err)
	}
	return nil
}

// UpdateSweepRun updates an existing sweep run record.
func (s *PostgresSweepRunStore) UpdateSweepRun(ctx context.Context, run *SweepRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sweep_runs SET
			status = $1, finished_at = $2, duration_ms = $3,
			carts_scanned = $4, carts_notified = $5, failures = $6, error_message = $7
		WHERE id = $8`,
		string(run.Status), run.FinishedAt, run.DurationMS,
		run.CartsScanned, run.CartsNotified, run.Failures, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating sweep run %q: %w", run.ID, err)
	}
	return nil
}

// ListSweepRuns returns the most recent sweep runs ordered by start time descending.
func (s *PostgresSweepRunStore) ListSweepRuns(ctx context.Context, limit int) ([]*SweepRun, error) {
	if limit <= 0 {
		limit = defaultSweepRunLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, trigger, status, started_at, finished_at, duration_ms,
		       carts_scanned, carts_notified, failures, error_message
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sweep runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*SweepRun, error) {
		run := &SweepRun{}
		var trigger, status string
		err := row.Scan(
			&run.ID, &trigger, &status, &run.StartedAt, &run.FinishedAt, &run.DurationMS,
			&run.CartsScanned, &run.CartsNotified, &run.Failures, &run.ErrorMessage,
		)
		run.Trigger = SweepTrigger(trigger)
		run.Status = RunStatus(status)
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning sweep runs: %w", err)
	}
	return runs, nil
}
