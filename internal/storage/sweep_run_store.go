package storage

import (
	"context"
	"time"
)

// SweepTrigger records what started a sweep run.
type SweepTrigger string

// Sweep trigger constants.
const (
	SweepTriggerScheduled SweepTrigger = "scheduled"
	SweepTriggerManual    SweepTrigger = "manual"
)

// RunStatus defines the outcome of a single sweep run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// SweepRun records the result of one abandoned-cart sweep.
type SweepRun struct {
	ID            string       `json:"id"`
	Trigger       SweepTrigger `json:"trigger"`
	Status        RunStatus    `json:"status"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	DurationMS    int64        `json:"duration_ms"`
	CartsScanned  int          `json:"carts_scanned"`
	CartsNotified int          `json:"carts_notified"`
	Failures      int          `json:"failures"`
	ErrorMessage  string       `json:"error_message"`
}

// SweepRunStore persists the sweep history.
type SweepRunStore interface {
	// CreateSweepRun inserts a run, assigning an id when empty.
	CreateSweepRun(ctx context.Context, run *SweepRun) error
	// UpdateSweepRun stores the outcome fields of an existing run.
	UpdateSweepRun(ctx context.Context, run *SweepRun) error
	// ListSweepRuns returns the most recent runs, newest first.
	ListSweepRuns(ctx context.Context, limit int) ([]*SweepRun, error)
}

const defaultSweepRunLimit = 50
