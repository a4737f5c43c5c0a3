package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/storage"
)

// sweepLockKey names the distributed lock held for the length of a sweep.
const sweepLockKey = "kirana:sweep"

// ErrSweepLocked is returned when another instance holds the sweep lock.
var ErrSweepLocked = errors.New("another sweep is running")

// Locker provides a best-effort mutual exclusion across instances.
type Locker interface {
	// TryLock acquires key for ttl. It returns false without error when the
	// lock is held elsewhere. The returned func releases the lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// SweeperConfig holds the abandoned-cart sweeper configuration.
type SweeperConfig struct {
	Store     storage.BuyerStore
	Generator ContentGenerator
	Provider  notification.Provider
	Logger    *slog.Logger
	// Runs records sweep history when set.
	Runs storage.SweepRunStore
	// Locker is optional; without it sweeps only exclude each other in-process.
	Locker         Locker
	EventPublisher EventPublisher
	Clock          clockwork.Clock

	Interval         time.Duration
	AbandonThreshold time.Duration
	// Timeout bounds one whole sweep. Defaults to Interval.
	Timeout time.Duration
}

// SweepResult summarises one sweep.
type SweepResult struct {
	RunID         string `json:"run_id,omitempty"`
	CartsScanned  int    `json:"carts_scanned"`
	CartsNotified int    `json:"carts_notified"`
	Failures      int    `json:"failures"`
}

// Sweeper periodically sends one whole-cart reminder to buyers whose carts
// have been idle past the abandonment threshold. It runs independently of the
// per-item timers, so an item can receive both kinds of reminder.
type Sweeper struct {
	cron   gocron.Scheduler
	cfg    SweeperConfig
	logger *slog.Logger
}

// NewSweeper creates a Sweeper. Store, Generator and Provider are required.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Store == nil || cfg.Generator == nil || cfg.Provider == nil {
		return nil, errors.New("sweeper: store, generator and provider are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.AbandonThreshold <= 0 {
		cfg.AbandonThreshold = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}

	cron, err := gocron.NewScheduler(
		gocron.WithClock(cfg.Clock),
		gocron.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	return &Sweeper{cron: cron, cfg: cfg, logger: cfg.Logger}, nil
}

// Start registers the periodic sweep job and starts the gocron scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(s.runScheduled),
		gocron.WithName("abandoned-cart-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("abandoned-cart sweeper started",
		"interval", s.cfg.Interval, "threshold", s.cfg.AbandonThreshold)
	return nil
}

// Stop shuts down the gocron scheduler, waiting for a running sweep.
func (s *Sweeper) Stop() error {
	return s.cron.Shutdown()
}

func (s *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if _, err := s.Sweep(ctx, storage.SweepTriggerScheduled); err != nil && !errors.Is(err, ErrSweepLocked) {
		s.logger.Error("abandoned-cart sweep failed", "error", err)
	}
}

// Sweep runs one pass over idle carts. Per-buyer failures are counted in the
// result; only failures to query carts or take the lock are returned.
func (s *Sweeper) Sweep(ctx context.Context, trigger storage.SweepTrigger) (res SweepResult, err error) {
	ctx, span := tracer.Start(ctx, "reminder.sweep",
		trace.WithAttributes(attribute.String("sweep.trigger", string(trigger))))
	defer func() {
		span.SetAttributes(
			attribute.Int("sweep.carts_scanned", res.CartsScanned),
			attribute.Int("sweep.carts_notified", res.CartsNotified),
			attribute.Int("sweep.failures", res.Failures),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.cfg.Locker != nil {
		release, ok, lockErr := s.cfg.Locker.TryLock(ctx, sweepLockKey, s.cfg.Timeout)
		if lockErr != nil {
			return res, fmt.Errorf("acquiring sweep lock: %w", lockErr)
		}
		if !ok {
			s.logger.Info("sweep skipped, lock held elsewhere")
			return res, ErrSweepLocked
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				s.logger.Warn("failed to release sweep lock", "error", relErr)
			}
		}()
	}

	startedAt := s.cfg.Clock.Now().UTC()
	run := s.startRun(ctx, trigger, startedAt)
	res.RunID = run.ID
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("abandoned-cart sweep panicked", "panic", r)
			err = fmt.Errorf("sweep panicked: %v", r)
		}
		s.finishRun(ctx, run, startedAt, res, err)
	}()

	cutoff := startedAt.Add(-s.cfg.AbandonThreshold)
	buyers, err := s.cfg.Store.FindCartsOlderThan(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("finding abandoned carts: %w", err)
	}
	res.CartsScanned = len(buyers)

	for _, b := range buyers {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		notified, buyerErr := s.sweepBuyer(ctx, b, cutoff)
		if notified {
			res.CartsNotified++
		}
		if buyerErr != nil {
			res.Failures++
			s.logger.Error("abandoned-cart reminder failed", "buyer_id", b.ID, "error", buyerErr)
			s.publish(EventCartFailed, map[string]string{"buyer_id": b.ID, "error": buyerErr.Error()})
		}
	}

	s.logger.Info("abandoned-cart sweep finished",
		"trigger", trigger, "scanned", res.CartsScanned,
		"notified", res.CartsNotified, "failures", res.Failures)
	return res, nil
}

// staleItems returns the items not yet swept and untouched since cutoff.
func staleItems(b *storage.Buyer, cutoff time.Time) []storage.CartItem {
	var out []storage.CartItem
	for _, it := range b.Cart.Items {
		if it.NotificationSent || it.TouchedAt().After(cutoff) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Sweeper) sweepBuyer(ctx context.Context, b *storage.Buyer, cutoff time.Time) (bool, error) {
	items := staleItems(b, cutoff)
	if len(items) == 0 {
		return false, nil
	}

	msg, err := s.cfg.Generator.CartReminder(ctx, b, items)
	if err != nil {
		return false, err
	}

	now := s.cfg.Clock.Now()
	notifID := uuid.New().String()
	itemIDs := make([]string, len(items))
	for i := range items {
		itemIDs[i] = items[i].ItemID
	}

	updated, err := storage.UpdateBuyer(ctx, s.cfg.Store, b.ID, func(doc *storage.Buyer) error {
		flagged := 0
		for _, id := range itemIDs {
			if it := doc.Cart.Item(id); it != nil && !it.NotificationSent {
				it.NotificationSent = true
				flagged++
			}
		}
		if flagged == 0 {
			return errSuperseded
		}
		doc.Notifications = append(doc.Notifications, storage.Notification{
			ID:             notifID,
			Type:           storage.NotificationCartAbandonment,
			Subject:        msg.Subject,
			Message:        msg.Text,
			ItemIDs:        itemIDs,
			SentAt:         now,
			DeliveryStatus: storage.DeliveryPending,
		})
		return nil
	})
	if errors.Is(err, errSuperseded) || errors.Is(err, storage.ErrBuyerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recording cart reminder: %w", err)
	}

	log := s.logger.With("buyer_id", b.ID)
	deliveryErr := deliver(ctx, s.cfg.Provider, updated.Email, msg)
	recordDelivery(ctx, s.cfg.Store, log, b.ID, notifID, deliveryErr)
	if deliveryErr != nil {
		// The notification and flags stand; the item is not swept again.
		return true, fmt.Errorf("delivering cart reminder: %w", deliveryErr)
	}

	log.Info("abandoned-cart reminder sent", "notification_id", notifID, "items", len(items))
	s.publish(EventCartSent, map[string]string{
		"buyer_id":        b.ID,
		"notification_id": notifID,
		"items":           strconv.Itoa(len(items)),
	})
	return true, nil
}

// TriggerManualNotification sends a whole-cart reminder covering every item
// in the buyer's cart right away. Sweep flags are left untouched. A delivery
// failure is reported through the returned notification's DeliveryStatus;
// the notification is persisted either way.
func (s *Sweeper) TriggerManualNotification(ctx context.Context, buyerID string) (*storage.Notification, error) {
	b, err := s.cfg.Store.FindByID(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("loading buyer %q: %w", buyerID, err)
	}
	if b == nil {
		return nil, storage.ErrBuyerNotFound
	}
	if len(b.Cart.Items) == 0 {
		return nil, reminder.ErrNoItems
	}

	msg, err := s.cfg.Generator.CartReminder(ctx, b, b.Cart.Items)
	if err != nil {
		return nil, fmt.Errorf("generating reminder: %w", err)
	}

	n := storage.Notification{
		ID:             uuid.New().String(),
		Type:           storage.NotificationCartAbandonment,
		Subject:        msg.Subject,
		Message:        msg.Text,
		SentAt:         s.cfg.Clock.Now(),
		DeliveryStatus: storage.DeliveryPending,
	}
	for i := range b.Cart.Items {
		n.ItemIDs = append(n.ItemIDs, b.Cart.Items[i].ItemID)
	}
	updated, err := storage.UpdateBuyer(ctx, s.cfg.Store, buyerID, func(doc *storage.Buyer) error {
		doc.Notifications = append(doc.Notifications, n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording reminder: %w", err)
	}

	log := s.logger.With("buyer_id", buyerID, "notification_id", n.ID)
	deliveryErr := deliver(ctx, s.cfg.Provider, updated.Email, msg)
	recordDelivery(ctx, s.cfg.Store, log, buyerID, n.ID, deliveryErr)
	if deliveryErr != nil {
		log.Warn("manual reminder delivery failed", "error", deliveryErr)
		n.DeliveryStatus = storage.DeliveryFailed
		n.DeliveryError = deliveryErr.Error()
		s.publish(EventCartFailed, map[string]string{"buyer_id": buyerID, "error": deliveryErr.Error()})
		return &n, nil
	}
	n.DeliveryStatus = storage.DeliverySent
	log.Info("manual reminder sent")
	s.publish(EventCartSent, map[string]string{
		"buyer_id":        buyerID,
		"notification_id": n.ID,
		"items":           strconv.Itoa(len(n.ItemIDs)),
	})
	return &n, nil
}

func (s *Sweeper) startRun(ctx context.Context, trigger storage.SweepTrigger, startedAt time.Time) *storage.SweepRun {
	run := &storage.SweepRun{
		Trigger:   trigger,
		Status:    storage.RunStatusRunning,
		StartedAt: startedAt,
	}
	if s.cfg.Runs == nil {
		return run
	}
	if err := s.cfg.Runs.CreateSweepRun(ctx, run); err != nil {
		s.logger.Error("failed to create sweep run", "error", err)
	}
	return run
}

func (s *Sweeper) finishRun(ctx context.Context, run *storage.SweepRun, startedAt time.Time, res SweepResult, runErr error) {
	finished := s.cfg.Clock.Now().UTC()
	run.FinishedAt = &finished
	run.DurationMS = elapsedMS(startedAt, finished)
	run.CartsScanned = res.CartsScanned
	run.CartsNotified = res.CartsNotified
	run.Failures = res.Failures
	run.Status = storage.RunStatusSuccess

	payload := map[string]string{
		"run_id":   run.ID,
		"trigger":  string(run.Trigger),
		"scanned":  strconv.Itoa(res.CartsScanned),
		"notified": strconv.Itoa(res.CartsNotified),
		"failures": strconv.Itoa(res.Failures),
	}
	if runErr != nil {
		run.Status = storage.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		payload["error"] = runErr.Error()
		s.publish(EventSweepFailed, payload)
	} else {
		s.publish(EventSweepCompleted, payload)
	}

	if s.cfg.Runs == nil || run.ID == "" {
		return
	}
	if err := s.cfg.Runs.UpdateSweepRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("failed to update sweep run", "run_id", run.ID, "error", err)
	}
}

func (s *Sweeper) publish(eventType string, payload map[string]string) {
	if s.cfg.EventPublisher != nil {
		s.cfg.EventPublisher.Publish(eventType, payload)
	}
}
