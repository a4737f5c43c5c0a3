package storage

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType distinguishes per-item reminders from whole-cart abandonment messages.
type NotificationType string

// Notification type constants.
const (
	NotificationItemReminder    NotificationType = "item_reminder"
	NotificationCartAbandonment NotificationType = "cart_abandonment"
)

// DeliveryStatus records the outcome of handing a notification to the email provider.
type DeliveryStatus string

// Delivery status constants.
const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// CartItem is one product line in a buyer's cart, tracked individually for reminders.
type CartItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	StoreID   string          `json:"store_id"`
	StoreName string          `json:"store_name"`

	AddedAt       time.Time  `json:"added_at"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`

	NotificationCount      int        `json:"notification_count"`
	LastNotificationSentAt *time.Time `json:"last_notification_sent_at,omitempty"`
	NotificationsPaused    bool       `json:"notifications_paused"`

	// NotificationSent is set by the abandoned-cart sweep once the item has been
	// included in a whole-cart message.
	NotificationSent bool `json:"notification_sent"`
}

// LineTotal returns unit price times quantity.
func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TouchedAt returns the last time the buyer changed this line, falling back to
// when it was added.
func (i *CartItem) TouchedAt() time.Time {
	if i.LastUpdatedAt != nil {
		return *i.LastUpdatedAt
	}
	return i.AddedAt
}

// Cart is the buyer's current basket. TotalQuantity and TotalPrice are
// denormalized and must be refreshed with Recalculate after every mutation.
type Cart struct {
	Items          []CartItem      `json:"items"`
	TotalQuantity  int             `json:"total_quantity"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	LastActivityAt *time.Time      `json:"last_activity_at,omitempty"`
}

// Item returns a pointer to the item with the given id, or nil.
// The pointer is only valid until the next mutation of Items.
func (c *Cart) Item(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveItem deletes the item and reports whether it was present.
func (c *Cart) RemoveItem(itemID string) bool {
	n := len(c.Items)
	c.Items = slices.DeleteFunc(c.Items, func(it CartItem) bool { return it.ItemID == itemID })
	return len(c.Items) != n
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
	c.Recalculate()
}

// Recalculate refreshes the aggregate quantity and price.
func (c *Cart) Recalculate() {
	qty := 0
	total := decimal.Zero
	for i := range c.Items {
		qty += c.Items[i].Quantity
		total = total.Add(c.Items[i].LineTotal())
	}
	c.TotalQuantity = qty
	c.TotalPrice = total
}

// Touch stamps the cart's last activity.
func (c *Cart) Touch(now time.Time) {
	c.LastActivityAt = &now
}

// Notification is an entry in a buyer's notification log.
type Notification struct {
	ID                 string           `json:"id"`
	Type               NotificationType `json:"type"`
	Subject            string           `json:"subject"`
	Message            string           `json:"message"`
	ItemID             string           `json:"item_id,omitempty"`
	ItemName           string           `json:"item_name,omitempty"`
	ItemIDs            []string         `json:"item_ids,omitempty"`
	NotificationNumber int              `json:"notification_number,omitempty"`
	SentAt             time.Time        `json:"sent_at"`
	DeliveryStatus     DeliveryStatus   `json:"delivery_status"`
	DeliveryError      string           `json:"delivery_error,omitempty"`
	ReadAt             *time.Time       `json:"read_at,omitempty"`
}

// Buyer is the persisted buyer document: profile, cart and notification log.
type Buyer struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Cart            Cart           `json:"cart"`
	Notifications   []Notification `json:"notifications"`
	RecentPurchases []string       `json:"recent_purchases,omitempty"`

	// Version is incremented by every successful Save and used as the
	// optimistic concurrency token.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification returns a pointer to the notification with the given id, or nil.
func (b *Buyer) Notification(id string) *Notification {
	for i := range b.Notifications {
		if b.Notifications[i].ID == id {
			return &b.Notifications[i]
		}
	}
	return nil
}

// NotificationsNewestFirst returns a copy of the notification log sorted by
// SentAt descending.
func (b *Buyer) NotificationsNewestFirst() []Notification {
	out := slices.Clone(b.Notifications)
	slices.SortStableFunc(out, func(a, c Notification) int {
		return c.SentAt.Compare(a.SentAt)
	})
	if out == nil {
		out = []Notification{}
	}
	return out
}
