// Package scheduler owns the cart reminder timers: a per-item scheduler that
// sends escalating reminders while an item sits in a cart, and a periodic
// sweeper for carts abandoned past a threshold.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// EventPublisher allows the scheduler to emit events without depending on a
// concrete event bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Event type constants for reminder and sweep outcomes.
const (
	EventItemSent             = "reminder.item.sent"
	EventItemGenerationFailed = "reminder.item.generation_failed"
	EventItemDeliveryFailed   = "reminder.item.delivery_failed"
	EventCartSent             = "reminder.cart.sent"
	EventCartFailed           = "reminder.cart.failed"
	EventSweepCompleted       = "sweep.run.completed"
	EventSweepFailed          = "sweep.run.failed"
)

// ContentGenerator writes reminder copy. *reminder.Generator implements it.
type ContentGenerator interface {
	ItemReminder(ctx context.Context, buyer *storage.Buyer, item *storage.CartItem, attempt int) (*reminder.Message, error)
	CartReminder(ctx context.Context, buyer *storage.Buyer, items []storage.CartItem) (*reminder.Message, error)
}

// Config holds the per-item scheduler configuration.
type Config struct {
	Store     storage.BuyerStore
	Generator ContentGenerator
	Provider  notification.Provider
	Logger    *slog.Logger
	// EventPublisher is optional.
	EventPublisher EventPublisher
	// Clock defaults to the real clock.
	Clock clockwork.Clock

	BaseInterval     time.Duration
	MaxNotifications int
	MinDwell         time.Duration
	// FireTimeout bounds one fire: fetch, generation, persistence and delivery.
	FireTimeout time.Duration
	// Escalation multiplies BaseInterval per attempt; the last entry repeats.
	Escalation []int
}

func (c *Config) setDefaults() {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = 30 * time.Minute
	}
	if c.MaxNotifications <= 0 {
		c.MaxNotifications = 3
	}
	if c.FireTimeout <= 0 {
		c.FireTimeout = 2 * time.Minute
	}
	if len(c.Escalation) == 0 {
		c.Escalation = []int{1, 2, 4}
	}
}

// Scheduler arms one reminder timer per cart item and runs the fire flow when
// it expires. The cart service calls the On* hooks after persisting a change.
type Scheduler struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
}

// New creates a Scheduler. Store, Generator and Provider are required.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil || cfg.Generator == nil || cfg.Provider == nil {
		return nil, errors.New("scheduler: store, generator and provider are required")
	}
	cfg.setDefaults()
	return &Scheduler{
		cfg:      cfg,
		registry: NewRegistry(cfg.Clock),
		logger:   cfg.Logger,
	}, nil
}

// Registry exposes the timer registry, mainly for metrics.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// NextDelay returns the wait before reminder number attempt (1-based):
// BaseInterval times the escalation multiplier for that attempt.
func (s *Scheduler) NextDelay(attempt int) time.Duration {
	esc := s.cfg.Escalation
	i := min(max(attempt-1, 0), len(esc)-1)
	return s.cfg.BaseInterval * time.Duration(esc[i])
}

// Start re-arms timers for every item in an active cart that still has
// reminders left, using the time remaining until its next reminder was due.
func (s *Scheduler) Start(ctx context.Context) error {
	buyers, err := s.cfg.Store.ListActiveCarts(ctx)
	if err != nil {
		return fmt.Errorf("loading active carts: %w", err)
	}

	now := s.cfg.Clock.Now()
	armed := 0
	for _, b := range buyers {
		for i := range b.Cart.Items {
			item := &b.Cart.Items[i]
			if !s.trackable(item) {
				continue
			}
			since := item.TouchedAt()
			if item.LastNotificationSentAt != nil && item.LastNotificationSentAt.After(since) {
				since = *item.LastNotificationSentAt
			}
			due := since.Add(s.NextDelay(item.NotificationCount + 1))
			s.registry.Schedule(Key{BuyerID: b.ID, ItemID: item.ItemID}, max(due.Sub(now), 0), s.fireItem)
			armed++
		}
	}
	s.logger.Info("reminder scheduler started", "carts", len(buyers), "timers", armed)
	return nil
}

// Stop cancels every timer and waits for running fires to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	n := s.registry.Len()
	if err := s.registry.Close(ctx); err != nil {
		return fmt.Errorf("waiting for reminder fires: %w", err)
	}
	s.logger.Info("reminder scheduler stopped", "cancelled", n)
	return nil
}

// OnItemAdded arms the first reminder for a newly added item.
func (s *Scheduler) OnItemAdded(buyerID, itemID string) {
	s.schedule(Key{BuyerID: buyerID, ItemID: itemID}, s.NextDelay(1))
}

// OnItemQuantityChanged restarts the item's timer. The notification count is
// kept, so the next reminder uses the escalation step it was already on.
func (s *Scheduler) OnItemQuantityChanged(buyerID string, item *storage.CartItem) {
	key := Key{BuyerID: buyerID, ItemID: item.ItemID}
	if !s.trackable(item) {
		s.registry.Cancel(key)
		return
	}
	s.schedule(key, s.NextDelay(item.NotificationCount+1))
}

// OnItemRemoved cancels the item's timer.
func (s *Scheduler) OnItemRemoved(buyerID, itemID string) {
	s.registry.Cancel(Key{BuyerID: buyerID, ItemID: itemID})
}

// OnCartCleared cancels every timer of the buyer.
func (s *Scheduler) OnCartCleared(buyerID string) {
	n := s.registry.CancelBuyer(buyerID)
	s.logger.Debug("cart cleared, timers cancelled", "buyer_id", buyerID, "cancelled", n)
}

// OnNotificationsToggled cancels the timer when paused. On resume it arms a
// fresh base-interval timer unless the item is already capped or a timer is
// still armed, so repeated resumes keep the existing deadline.
func (s *Scheduler) OnNotificationsToggled(buyerID string, item *storage.CartItem, paused bool) {
	key := Key{BuyerID: buyerID, ItemID: item.ItemID}
	if paused || item.NotificationCount >= s.cfg.MaxNotifications {
		s.registry.Cancel(key)
		return
	}
	if s.registry.Pending(key) {
		return
	}
	s.schedule(key, s.NextDelay(1))
}

func (s *Scheduler) schedule(key Key, delay time.Duration) {
	s.registry.Schedule(key, delay, s.fireItem)
	s.logger.Debug("reminder scheduled",
		"buyer_id", key.BuyerID, "item_id", key.ItemID, "delay", delay)
}

// trackable reports whether an item should have a timer.
func (s *Scheduler) trackable(item *storage.CartItem) bool {
	return !item.NotificationsPaused && item.NotificationCount < s.cfg.MaxNotifications
}

func (s *Scheduler) publish(eventType string, payload map[string]string) {
	if s.cfg.EventPublisher != nil {
		s.cfg.EventPublisher.Publish(eventType, payload)
	}
}
