package storage_test

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/kiranaconnect/kirana/internal/storage"
)

func randomCartItem(addedAt time.Time) storage.CartItem {
	return storage.CartItem{
		ItemID:    gofakeit.UUID(),
		Name:      gofakeit.ProductName(),
		UnitPrice: decimal.NewFromFloat(gofakeit.Price(10, 900)).Round(2),
		Quantity:  gofakeit.Number(1, 5),
		Unit:      gofakeit.RandomString([]string{"kg", "g", "pcs", "L"}),
		StoreID:   gofakeit.UUID(),
		StoreName: gofakeit.Company(),
		AddedAt:   addedAt.UTC().Truncate(time.Millisecond),
	}
}

// randomBuyer returns a buyer with n cart items whose last activity is activity.
func randomBuyer(n int, activity time.Time) *storage.Buyer {
	b := &storage.Buyer{
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
	}
	for range n {
		b.Cart.Items = append(b.Cart.Items, randomCartItem(activity))
	}
	b.Cart.Recalculate()
	if n > 0 {
		b.Cart.Touch(activity.UTC().Truncate(time.Millisecond))
	}
	return b
}

// buyerDiff compares documents ignoring the timestamps the store assigns.
func buyerDiff(want, got *storage.Buyer) string {
	return cmp.Diff(want, got,
		cmp.FilterPath(func(p cmp.Path) bool {
			name := p.Last().String()
			return name == ".CreatedAt" || name == ".UpdatedAt"
		}, cmp.Ignore()),
	)
}
