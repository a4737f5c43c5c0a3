package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// ReminderHooks receives cart changes after they are persisted.
// *scheduler.Scheduler implements it.
type ReminderHooks interface {
	OnItemAdded(buyerID, itemID string)
	OnItemQuantityChanged(buyerID string, item *storage.CartItem)
	OnItemRemoved(buyerID, itemID string)
	OnCartCleared(buyerID string)
	OnNotificationsToggled(buyerID string, item *storage.CartItem, paused bool)
}

// ManualNotifier sends an on-demand whole-cart reminder.
// *scheduler.Sweeper implements it.
type ManualNotifier interface {
	TriggerManualNotification(ctx context.Context, buyerID string) (*storage.Notification, error)
}

// CreateBuyerInput is the payload for CreateBuyer.
type CreateBuyerInput struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	RecentPurchases []string `json:"recent_purchases"`
}

// AddItemInput is the payload for AddItem.
type AddItemInput struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	StoreID   string          `json:"store_id"`
	StoreName string          `json:"store_name"`
}

// CartService defines the business logic for buyer carts and their reminders.
type CartService interface {
	CreateBuyer(ctx context.Context, in CreateBuyerInput) (*storage.Buyer, error)
	GetCart(ctx context.Context, buyerID string) (*storage.Cart, error)
	AddItem(ctx context.Context, buyerID string, in AddItemInput) (*storage.Cart, error)
	UpdateQuantity(ctx context.Context, buyerID, itemID string, quantity int) (*storage.Cart, error)
	RemoveItem(ctx context.Context, buyerID, itemID string) (*storage.Cart, error)
	ClearCart(ctx context.Context, buyerID string) (*storage.Cart, error)
	SetNotificationsPaused(ctx context.Context, buyerID, itemID string, paused bool) (*storage.CartItem, error)
	ListNotifications(ctx context.Context, buyerID string) ([]storage.Notification, error)
	MarkNotificationRead(ctx context.Context, buyerID, notificationID string) (*storage.Notification, error)
	TriggerManualNotification(ctx context.Context, buyerID string) (*storage.Notification, error)
}

type cartService struct {
	store    storage.BuyerStore
	hooks    ReminderHooks
	notifier ManualNotifier
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewCartService returns a CartService. A nil clock uses the real clock.
func NewCartService(
	store storage.BuyerStore, hooks ReminderHooks, notifier ManualNotifier,
	clock clockwork.Clock, logger *slog.Logger,
) CartService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &cartService{store: store, hooks: hooks, notifier: notifier, clock: clock, logger: logger}
}

func (s *cartService) CreateBuyer(ctx context.Context, in CreateBuyerInput) (*storage.Buyer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, &ValidationError{Field: "email", Message: "a valid email address is required"}
	}

	if in.ID != "" {
		existing, err := s.store.FindByID(ctx, in.ID)
		if err != nil {
			return nil, fmt.Errorf("looking up buyer: %w", err)
		}
		if existing != nil {
			return nil, &ConflictError{Resource: "buyer", ID: in.ID}
		}
	}

	b := &storage.Buyer{
		ID:              in.ID,
		Name:            in.Name,
		Email:           in.Email,
		RecentPurchases: in.RecentPurchases,
		Cart:            storage.Cart{Items: []storage.CartItem{}},
		Notifications:   []storage.Notification{},
	}
	b.Cart.Recalculate()
	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("creating buyer: %w", err)
	}
	s.logger.Info("buyer created", "buyer_id", b.ID)
	return b, nil
}

func (s *cartService) GetCart(ctx context.Context, buyerID string) (*storage.Cart, error) {
	b, err := s.getBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return &b.Cart, nil
}

func (s *cartService) AddItem(ctx context.Context, buyerID string, in AddItemInput) (*storage.Cart, error) {
	if err := validateAddItem(&in); err != nil {
		return nil, err
	}

	readded := false
	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		now := s.clock.Now()
		if it := b.Cart.Item(in.ItemID); it != nil {
			readded = true
			it.Quantity += in.Quantity
			it.LastUpdatedAt = &now
			it.NotificationCount = 0
			it.LastNotificationSentAt = nil
			it.NotificationSent = false
		} else {
			readded = false
			b.Cart.Items = append(b.Cart.Items, storage.CartItem{
				ItemID:    in.ItemID,
				Name:      in.Name,
				UnitPrice: in.UnitPrice,
				Quantity:  in.Quantity,
				Unit:      in.Unit,
				StoreID:   in.StoreID,
				StoreName: in.StoreName,
				AddedAt:   now,
			})
		}
		b.Cart.Recalculate()
		b.Cart.Touch(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if readded {
		s.hooks.OnItemQuantityChanged(buyerID, b.Cart.Item(in.ItemID))
	} else {
		s.hooks.OnItemAdded(buyerID, in.ItemID)
	}
	s.logger.Info("cart item added", "buyer_id", buyerID, "item_id", in.ItemID, "readded", readded)
	return &b.Cart, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, buyerID, itemID string, quantity int) (*storage.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, buyerID, itemID)
	}

	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		it := b.Cart.Item(itemID)
		if it == nil {
			return &NotFoundError{Resource: "cart item", ID: itemID}
		}
		now := s.clock.Now()
		it.Quantity = quantity
		it.LastUpdatedAt = &now
		b.Cart.Recalculate()
		b.Cart.Touch(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hooks.OnItemQuantityChanged(buyerID, b.Cart.Item(itemID))
	s.logger.Info("cart item quantity updated", "buyer_id", buyerID, "item_id", itemID, "quantity", quantity)
	return &b.Cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, buyerID, itemID string) (*storage.Cart, error) {
	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		if !b.Cart.RemoveItem(itemID) {
			return &NotFoundError{Resource: "cart item", ID: itemID}
		}
		b.Cart.Recalculate()
		b.Cart.Touch(s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hooks.OnItemRemoved(buyerID, itemID)
	s.logger.Info("cart item removed", "buyer_id", buyerID, "item_id", itemID)
	return &b.Cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, buyerID string) (*storage.Cart, error) {
	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		b.Cart.Clear()
		b.Cart.Touch(s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hooks.OnCartCleared(buyerID)
	s.logger.Info("cart cleared", "buyer_id", buyerID)
	return &b.Cart, nil
}

func (s *cartService) SetNotificationsPaused(
	ctx context.Context, buyerID, itemID string, paused bool,
) (*storage.CartItem, error) {
	changed := false
	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		it := b.Cart.Item(itemID)
		if it == nil {
			return &NotFoundError{Resource: "cart item", ID: itemID}
		}
		changed = it.NotificationsPaused != paused
		it.NotificationsPaused = paused
		return nil
	})
	if err != nil {
		return nil, err
	}

	it := b.Cart.Item(itemID)
	if !changed {
		// Repeating the current state must not touch the armed timer.
		return it, nil
	}
	s.hooks.OnNotificationsToggled(buyerID, it, paused)
	s.logger.Info("item reminders toggled", "buyer_id", buyerID, "item_id", itemID, "paused", paused)
	return it, nil
}

func (s *cartService) ListNotifications(ctx context.Context, buyerID string) ([]storage.Notification, error) {
	b, err := s.getBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return b.NotificationsNewestFirst(), nil
}

func (s *cartService) MarkNotificationRead(
	ctx context.Context, buyerID, notificationID string,
) (*storage.Notification, error) {
	b, err := s.update(ctx, buyerID, func(b *storage.Buyer) error {
		n := b.Notification(notificationID)
		if n == nil {
			return &NotFoundError{Resource: "notification", ID: notificationID}
		}
		if n.ReadAt == nil {
			now := s.clock.Now()
			n.ReadAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.Notification(notificationID), nil
}

func (s *cartService) TriggerManualNotification(ctx context.Context, buyerID string) (*storage.Notification, error) {
	n, err := s.notifier.TriggerManualNotification(ctx, buyerID)
	switch {
	case errors.Is(err, storage.ErrBuyerNotFound):
		return nil, &NotFoundError{Resource: "buyer", ID: buyerID}
	case errors.Is(err, reminder.ErrNoItems):
		return nil, &ValidationError{Field: "cart", Message: "cart is empty"}
	case err != nil:
		return nil, fmt.Errorf("sending manual reminder: %w", err)
	}
	if n != nil && n.DeliveryStatus == storage.DeliveryFailed {
		s.logger.Warn("manual reminder not delivered", "buyer_id", buyerID, "notification_id", n.ID, "error", n.DeliveryError)
		return n, &DeliveryError{Notification: n}
	}
	return n, nil
}

func (s *cartService) getBuyer(ctx context.Context, buyerID string) (*storage.Buyer, error) {
	b, err := s.store.FindByID(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("getting buyer %q: %w", buyerID, err)
	}
	if b == nil {
		return nil, &NotFoundError{Resource: "buyer", ID: buyerID}
	}
	return b, nil
}

// update runs fn under optimistic concurrency and maps store errors to
// service errors. Errors returned by fn pass through unchanged.
func (s *cartService) update(ctx context.Context, buyerID string, fn func(b *storage.Buyer) error) (*storage.Buyer, error) {
	b, err := storage.UpdateBuyer(ctx, s.store, buyerID, fn)
	switch {
	case errors.Is(err, storage.ErrBuyerNotFound):
		return nil, &NotFoundError{Resource: "buyer", ID: buyerID}
	case errors.Is(err, storage.ErrVersionConflict):
		return nil, &ConflictError{Resource: "buyer", ID: buyerID, Message: "modified concurrently, retry the request"}
	}
	return b, err
}

func validateAddItem(in *AddItemInput) error {
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ItemID == "" {
		return &ValidationError{Field: "item_id", Message: "item_id is required"}
	}
	if in.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	if in.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Message: "unit_price must not be negative"}
	}
	return nil
}
