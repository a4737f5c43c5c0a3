package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrVersionConflict is returned by Save when the stored document changed
	// since it was read.
	ErrVersionConflict = errors.New("buyer document was modified concurrently")

	// ErrBuyerNotFound is returned when an update targets a buyer that does not exist.
	ErrBuyerNotFound = errors.New("buyer not found")
)

// maxUpdateAttempts bounds the read-modify-write retries in UpdateBuyer.
const maxUpdateAttempts = 5

// BuyerStore is the persistence interface for buyer documents.
type BuyerStore interface {
	// FindByID returns the buyer, or nil when no buyer has that id.
	FindByID(ctx context.Context, id string) (*Buyer, error)
	// Create inserts a new buyer, assigning Version 1.
	Create(ctx context.Context, b *Buyer) error
	// Save writes b if the stored version still equals b.Version and bumps
	// b.Version on success. Returns ErrVersionConflict otherwise.
	Save(ctx context.Context, b *Buyer) error
	// FindCartsOlderThan returns buyers with at least one cart item whose cart
	// activity is before cutoff or was never recorded.
	FindCartsOlderThan(ctx context.Context, cutoff time.Time) ([]*Buyer, error)
	// ListActiveCarts returns every buyer with at least one cart item.
	ListActiveCarts(ctx context.Context) ([]*Buyer, error)
}

// UpdateBuyer loads the buyer, applies fn and saves, retrying when another
// writer got there first. fn may run more than once and must only mutate b.
// An error from fn aborts the update and is returned unchanged.
func UpdateBuyer(ctx context.Context, store BuyerStore, id string, fn func(b *Buyer) error) (*Buyer, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		b, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading buyer %q: %w", id, err)
		}
		if b == nil {
			return nil, ErrBuyerNotFound
		}
		if err := fn(b); err != nil {
			return nil, err
		}
		err = store.Save(ctx, b)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("saving buyer %q: %w", id, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("saving buyer %q after %d attempts: %w", id, maxUpdateAttempts, lastErr)
}
