package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/storage"
)

var tracer = otel.Tracer("github.com/kiranaconnect/kirana/internal/scheduler")

// errSuperseded aborts a fire whose item changed between generation and persistence.
var errSuperseded = errors.New("item changed while the reminder was generated")

// fireItem is the timer callback for one cart item.
func (s *Scheduler) fireItem(t Ticket) {
	log := s.logger.With("buyer_id", t.Key.BuyerID, "item_id", t.Key.ItemID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("reminder fire panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FireTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "reminder.item.fire", trace.WithAttributes(
		attribute.String("buyer.id", t.Key.BuyerID),
		attribute.String("item.id", t.Key.ItemID),
	))
	defer span.End()

	buyer, err := s.cfg.Store.FindByID(ctx, t.Key.BuyerID)
	if err != nil {
		log.Error("failed to load buyer for reminder", "error", err)
		return
	}
	if buyer == nil {
		log.Debug("buyer gone, reminder dropped")
		return
	}
	item := buyer.Cart.Item(t.Key.ItemID)
	if item == nil || !s.trackable(item) {
		return
	}

	now := s.cfg.Clock.Now()
	if inCart := now.Sub(item.AddedAt); inCart < s.cfg.MinDwell {
		log.Debug("item below minimum dwell, reminder skipped", "in_cart", inCart)
		return
	}

	attempt := item.NotificationCount + 1
	log = log.With("attempt", attempt)
	span.SetAttributes(attribute.Int("reminder.attempt", attempt))

	msg, err := s.cfg.Generator.ItemReminder(ctx, buyer, item, attempt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		log.Error("reminder generation failed", "error", err)
		s.publish(EventItemGenerationFailed, map[string]string{
			"buyer_id": t.Key.BuyerID,
			"item_id":  t.Key.ItemID,
			"attempt":  strconv.Itoa(attempt),
			"error":    err.Error(),
		})
		return
	}

	notifID := uuid.New().String()
	updated, err := storage.UpdateBuyer(ctx, s.cfg.Store, t.Key.BuyerID, func(b *storage.Buyer) error {
		it := b.Cart.Item(t.Key.ItemID)
		if it == nil || !s.trackable(it) || it.NotificationCount != attempt-1 {
			return errSuperseded
		}
		it.NotificationCount = attempt
		it.LastNotificationSentAt = &now
		b.Notifications = append(b.Notifications, storage.Notification{
			ID:                 notifID,
			Type:               storage.NotificationItemReminder,
			Subject:            msg.Subject,
			Message:            msg.Text,
			ItemID:             it.ItemID,
			ItemName:           it.Name,
			NotificationNumber: attempt,
			SentAt:             now,
			DeliveryStatus:     storage.DeliveryPending,
		})
		return nil
	})
	if errors.Is(err, errSuperseded) || errors.Is(err, storage.ErrBuyerNotFound) {
		log.Debug("reminder dropped, cart changed during generation")
		return
	}
	if err != nil {
		log.Error("failed to record reminder", "error", err)
		return
	}

	deliveryErr := deliver(ctx, s.cfg.Provider, updated.Email, msg)
	recordDelivery(ctx, s.cfg.Store, log, updated.ID, notifID, deliveryErr)

	payload := map[string]string{
		"buyer_id":        updated.ID,
		"item_id":         t.Key.ItemID,
		"attempt":         strconv.Itoa(attempt),
		"notification_id": notifID,
		"urgency":         string(msg.Urgency),
	}
	if deliveryErr != nil {
		span.RecordError(deliveryErr)
		log.Warn("reminder delivery failed", "error", deliveryErr)
		payload["error"] = deliveryErr.Error()
		s.publish(EventItemDeliveryFailed, payload)
	} else {
		log.Info("reminder sent", "notification_id", notifID, "discount", msg.DiscountCode != "")
		s.publish(EventItemSent, payload)
	}

	if attempt >= s.cfg.MaxNotifications {
		log.Info("reminder cap reached")
		return
	}
	delay := s.NextDelay(attempt + 1)
	if !s.registry.Rearm(t, delay, s.fireItem) {
		log.Debug("item rescheduled during fire, keeping newer timer")
		return
	}
	log.Debug("next reminder scheduled", "delay", delay)
}

// deliver hands msg to the provider for a single recipient.
func deliver(ctx context.Context, p notification.Provider, to string, msg *reminder.Message) error {
	if to == "" {
		return errors.New("buyer has no email address")
	}
	return p.Send(ctx, notification.Message{
		To:      []string{to},
		Subject: msg.Subject,
		Body:    msg.Text,
		HTML:    msg.HTML,
	})
}

// recordDelivery stores the delivery outcome on an already persisted notification.
func recordDelivery(ctx context.Context, store storage.BuyerStore, log *slog.Logger, buyerID, notifID string, deliveryErr error) {
	_, err := storage.UpdateBuyer(ctx, store, buyerID, func(b *storage.Buyer) error {
		n := b.Notification(notifID)
		if n == nil {
			return fmt.Errorf("notification %q not found", notifID)
		}
		if deliveryErr != nil {
			n.DeliveryStatus = storage.DeliveryFailed
			n.DeliveryError = deliveryErr.Error()
			return nil
		}
		n.DeliveryStatus = storage.DeliverySent
		n.DeliveryError = ""
		return nil
	})
	if err != nil {
		log.Warn("failed to record delivery status", "notification_id", notifID, "error", err)
	}
}

// elapsedMS is a small helper for run records.
func elapsedMS(from, to time.Time) int64 {
	return to.Sub(from).Milliseconds()
}
