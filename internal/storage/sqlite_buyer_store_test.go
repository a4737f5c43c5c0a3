package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranaconnect/kirana/internal/storage"
)

func newBuyerStore(t *testing.T) *storage.SQLiteBuyerStore {
	t.Helper()
	db, _, err := storage.NewSQLiteDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewSQLiteBuyerStore(db)
}

func TestSQLiteBuyerStore_CreateAndFind(t *testing.T) {
	store := newBuyerStore(t)
	ctx := context.Background()

	b := randomBuyer(2, time.Now())
	require.NoError(t, store.Create(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := store.FindByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, buyerDiff(b, got))
}

func TestSQLiteBuyerStore_FindByID_NotFound(t *testing.T) {
	store := newBuyerStore(t)

	got, err := store.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteBuyerStore_DuplicateEmail(t *testing.T) {
	store := newBuyerStore(t)
	ctx := context.Background()

	first := randomBuyer(0, time.Now())
	require.NoError(t, store.Create(ctx, first))

	second := randomBuyer(0, time.Now())
	second.Email = first.Email
	assert.Error(t, store.Create(ctx, second))
}

func TestSQLiteBuyerStore_Save(t *testing.T) {
	store := newBuyerStore(t)
	ctx := context.Background()

	b := randomBuyer(1, time.Now())
	require.NoError(t, store.Create(ctx, b))

	t.Run("bumps version", func(t *testing.T) {
		b.Cart.Items[0].Quantity = 9
		b.Cart.Recalculate()
		require.NoError(t, store.Save(ctx, b))
		assert.Equal(t, int64(2), b.Version)

		got, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, 9, got.Cart.Items[0].Quantity)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, b))

		stale.Name = "someone else"
		err = store.Save(ctx, stale)
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
	})

	t.Run("missing buyer", func(t *testing.T) {
		ghost := randomBuyer(0, time.Now())
		ghost.ID = "ghost"
		ghost.Version = 1
		assert.ErrorIs(t, store.Save(ctx, ghost), storage.ErrBuyerNotFound)
	})
}

func TestSQLiteBuyerStore_FindCartsOlderThan(t *testing.T) {
	store := newBuyerStore(t)
	ctx := context.Background()
	now := time.Now()

	stale := randomBuyer(2, now.Add(-3*time.Hour))
	fresh := randomBuyer(1, now.Add(-10*time.Minute))
	empty := randomBuyer(0, now.Add(-5*time.Hour))
	unknown := randomBuyer(1, now)
	unknown.Cart.LastActivityAt = nil

	for _, b := range []*storage.Buyer{stale, fresh, empty, unknown} {
		require.NoError(t, store.Create(ctx, b))
	}

	got, err := store.FindCartsOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{stale.ID, unknown.ID}, ids)

	t.Run("activity moves out of range after save", func(t *testing.T) {
		stale.Cart.Touch(now)
		require.NoError(t, store.Save(ctx, stale))

		got, err := store.FindCartsOlderThan(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, unknown.ID, got[0].ID)
	})
}

func TestSQLiteBuyerStore_ListActiveCarts(t *testing.T) {
	store := newBuyerStore(t)
	ctx := context.Background()

	withItems := randomBuyer(3, time.Now())
	without := randomBuyer(0, time.Now())
	require.NoError(t, store.Create(ctx, withItems))
	require.NoError(t, store.Create(ctx, without))

	got, err := store.ListActiveCarts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, withItems.ID, got[0].ID)
	assert.Len(t, got[0].Cart.Items, 3)
}
