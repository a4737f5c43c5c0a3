package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kiranaconnect/kirana/internal/agent"
	"github.com/kiranaconnect/kirana/internal/logger"
	"github.com/kiranaconnect/kirana/internal/notification"
	"github.com/kiranaconnect/kirana/internal/reminder"
	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/storage"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// --- completer stub ---

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubCompleter) Complete(_ context.Context, req agent.Request) (*agent.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &agent.Result{Text: req.Draft}, nil
}

func (c *stubCompleter) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *stubCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- provider stub ---

type stubProvider struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(_ context.Context, msg notification.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *stubProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *stubProvider) messages() []notification.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification.Message(nil), p.sent...)
}

// --- publisher stub ---

type stubPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *stubPublisher) Publish(eventType string, _ map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *stubPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// --- fixtures ---

type env struct {
	clock     *clockwork.FakeClock
	store     *storage.SQLiteBuyerStore
	runs      *storage.SQLiteSweepRunStore
	completer *stubCompleter
	provider  *stubProvider
	events    *stubPublisher
	gen       *reminder.Generator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, _, err := storage.NewSQLiteDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		clock:     clockwork.NewFakeClockAt(t0),
		store:     storage.NewSQLiteBuyerStore(db),
		runs:      storage.NewSQLiteSweepRunStore(db),
		completer: &stubCompleter{},
		provider:  &stubProvider{},
		events:    &stubPublisher{},
	}
	e.gen = reminder.NewGenerator(reminder.Config{
		Completer:         e.completer,
		SiteURL:           "https://kiranaconnect.in",
		DiscountThreshold: decimal.NewFromInt(500),
		Clock:             e.clock,
		Pick:              func(int) int { return 0 },
	})
	return e
}

func (e *env) newScheduler(t *testing.T, mutate ...func(*scheduler.Config)) *scheduler.Scheduler {
	t.Helper()
	cfg := scheduler.Config{
		Store:            e.store,
		Generator:        e.gen,
		Provider:         e.provider,
		Logger:           logger.Discard(),
		EventPublisher:   e.events,
		Clock:            e.clock,
		BaseInterval:     30 * time.Minute,
		MaxNotifications: 3,
		MinDwell:         5 * time.Minute,
		FireTimeout:      time.Minute,
		Escalation:       []int{1, 2, 4},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := scheduler.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func item(id string, price int64, added time.Time) storage.CartItem {
	return storage.CartItem{
		ItemID:    id,
		Name:      "Item " + id,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  1,
		Unit:      "pc",
		StoreName: "Gupta Stores",
		AddedAt:   added,
	}
}

func (e *env) createBuyer(t *testing.T, id string, activity time.Time, items ...storage.CartItem) *storage.Buyer {
	t.Helper()
	b := &storage.Buyer{
		ID:    id,
		Name:  "Buyer " + id,
		Email: id + "@example.com",
		Cart:  storage.Cart{Items: items},
	}
	b.Cart.Recalculate()
	if len(items) > 0 {
		b.Cart.Touch(activity)
	}
	require.NoError(t, e.store.Create(context.Background(), b))
	return b
}

func (e *env) buyer(t *testing.T, id string) *storage.Buyer {
	t.Helper()
	b, err := e.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (e *env) itemOf(t *testing.T, buyerID, itemID string) *storage.CartItem {
	t.Helper()
	it := e.buyer(t, buyerID).Cart.Item(itemID)
	require.NotNil(t, it)
	return it
}

// waitTimers blocks until exactly n timers are armed on the fake clock.
func (e *env) waitTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, e.clock.BlockUntilContext(ctx, n), "waiting for %d armed timers", n)
}

var errModelDown = errors.New("model unavailable")
