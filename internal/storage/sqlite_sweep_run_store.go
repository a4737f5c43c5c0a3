package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SQLiteSweepRunStore implements SweepRunStore backed by SQLite.
type SQLiteSweepRunStore struct {
	db *sql.DB
}

// NewSQLiteSweepRunStore returns a new SQLiteSweepRunStore.
func NewSQLiteSweepRunStore(db *sql.DB) *SQLiteSweepRunStore {
	return &SQLiteSweepRunStore{db: db}
}

// CreateSweepRun inserts a new sweep run record.
func (s *SQLiteSweepRunStore) CreateSweepRun(ctx context.Context, run *SweepRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_runs
			(id, trigger, status, started_at, finished_at, duration_ms,
			 carts_scanned, carts_notified, failures, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Trigger, run.Status, run.StartedAt, run.FinishedAt, run.DurationMS,
		run.CartsScanned, run.CartsNotified, run.Failures, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("creating sweep run: %w", err)
	}
	return nil
}

// UpdateSweepRun updates an existing sweep run record.
func (s *SQLiteSweepRunStore) UpdateSweepRun(ctx context.Context, run *SweepRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_runs SET
			status = ?, finished_at = ?, duration_ms = ?,
			carts_scanned = ?, carts_notified = ?, failures = ?, error_message = ?
		WHERE id = ?`,
		run.Status, run.FinishedAt, run.DurationMS,
		run.CartsScanned, run.CartsNotified, run.Failures, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating sweep run %q: %w", run.ID, err)
	}
	return nil
}

// ListSweepRuns returns the most recent sweep runs ordered by start time descending.
func (s *SQLiteSweepRunStore) ListSweepRuns(ctx context.Context, limit int) ([]*SweepRun, error) {
	if limit <= 0 {
		limit = defaultSweepRunLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger, status, started_at, finished_at, duration_ms,
		       carts_scanned, carts_notified, failures, error_message
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sweep runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	runs := make([]*SweepRun, 0)
	for rows.Next() {
		run := &SweepRun{}
		var finishedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.Trigger, &run.Status, &run.StartedAt, &finishedAt, &run.DurationMS,
			&run.CartsScanned, &run.CartsNotified, &run.Failures, &run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scanning sweep run: %w", err)
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sweep runs: %w", err)
	}
	return runs, nil
}
