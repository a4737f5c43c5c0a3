package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranaconnect/kirana/internal/scheduler"
	"github.com/kiranaconnect/kirana/internal/storage"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
	quiet   = 100 * time.Millisecond
)

func TestNextDelay_Escalation(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Minute},
		{1, 30 * time.Minute},
		{2, time.Hour},
		{3, 2 * time.Hour},
		{4, 2 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := scheduler.New(scheduler.Config{})
	assert.Error(t, err)
}

func TestScheduler_SendsThreeRemindersThenStops(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("rice", 120, t0))
	s.OnItemAdded("b1", "rice")
	key := scheduler.Key{BuyerID: "b1", ItemID: "rice"}

	steps := []time.Duration{30 * time.Minute, time.Hour, 2 * time.Hour}
	for i, step := range steps {
		e.waitTimers(t, 1)
		e.clock.Advance(step - time.Second)
		assert.Never(t, func() bool { return e.provider.count() > i }, quiet, tick, "fired early on step %d", i+1)
		e.clock.Advance(time.Second)
		require.Eventually(t, func() bool { return e.provider.count() == i+1 }, waitFor, tick)
	}

	require.Eventually(t, func() bool { return !s.Registry().Pending(key) }, waitFor, tick)
	e.clock.Advance(24 * time.Hour)
	assert.Never(t, func() bool { return e.provider.count() > 3 }, quiet, tick)

	it := e.itemOf(t, "b1", "rice")
	assert.Equal(t, 3, it.NotificationCount)
	require.NotNil(t, it.LastNotificationSentAt)

	b := e.buyer(t, "b1")
	require.Len(t, b.Notifications, 3)
	for i, n := range b.Notifications {
		assert.Equal(t, storage.NotificationItemReminder, n.Type)
		assert.Equal(t, i+1, n.NotificationNumber)
		assert.Equal(t, "rice", n.ItemID)
		assert.Equal(t, storage.DeliverySent, n.DeliveryStatus)
	}

	msgs := e.provider.messages()
	assert.Equal(t, []string{"b1@example.com"}, msgs[0].To)
	assert.Equal(t, "Your Item rice is waiting in your cart", msgs[0].Subject)
	assert.Equal(t, "Still thinking about Item rice?", msgs[1].Subject)
	assert.Equal(t, "Last reminder: Item rice is still in your cart", msgs[2].Subject)
	assert.True(t, e.events.has(scheduler.EventItemSent))
}

func TestScheduler_AtMostOneTimerPerItem(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("dal", 90, t0))

	s.OnItemAdded("b1", "dal")
	s.OnItemAdded("b1", "dal")
	it := e.itemOf(t, "b1", "dal")
	s.OnItemQuantityChanged("b1", it)

	assert.Equal(t, 1, s.Registry().Len())
	e.waitTimers(t, 1)

	e.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return e.provider.count() > 1 }, quiet, tick)
}

func TestScheduler_QuickUpdateAfterAddFiresOnce(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("atta", 300, t0))
	s.OnItemAdded("b1", "atta")

	e.clock.Advance(10 * time.Minute)
	s.OnItemQuantityChanged("b1", e.itemOf(t, "b1", "atta"))
	e.waitTimers(t, 1)

	// Original deadline passes without a send.
	e.clock.Advance(20 * time.Minute)
	assert.Never(t, func() bool { return e.provider.count() > 0 }, quiet, tick)

	e.clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return e.provider.count() > 1 }, quiet, tick)
}

func TestScheduler_QuantityChangeKeepsEscalationStep(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("oil", 200, t0))
	s.OnItemAdded("b1", "oil")

	e.waitTimers(t, 1)
	e.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 1 }, waitFor, tick)
	e.waitTimers(t, 1)

	s.OnItemQuantityChanged("b1", e.itemOf(t, "b1", "oil"))
	e.waitTimers(t, 1)

	e.clock.Advance(59 * time.Minute)
	assert.Never(t, func() bool { return e.provider.count() > 1 }, quiet, tick)
	e.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 2 }, waitFor, tick)
}

func TestScheduler_PauseIsIdempotent(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("ghee", 550, t0))
	key := scheduler.Key{BuyerID: "b1", ItemID: "ghee"}
	s.OnItemAdded("b1", "ghee")

	it := e.itemOf(t, "b1", "ghee")
	it.NotificationsPaused = true
	s.OnNotificationsToggled("b1", it, true)
	s.OnNotificationsToggled("b1", it, true)
	assert.False(t, s.Registry().Pending(key))

	it.NotificationsPaused = false
	s.OnNotificationsToggled("b1", it, false)
	assert.True(t, s.Registry().Pending(key))
	s.OnNotificationsToggled("b1", it, false)
	assert.Equal(t, 1, s.Registry().Len())
}

func TestScheduler_RepeatedResumeKeepsEscalatedDeadline(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("ghee", 550, t0))
	s.OnItemAdded("b1", "ghee")

	e.waitTimers(t, 1)
	e.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 1 }, waitFor, tick)
	e.waitTimers(t, 1)

	// Second reminder is due 60m after the first; resuming must not pull it in.
	e.clock.Advance(20 * time.Minute)
	s.OnNotificationsToggled("b1", e.itemOf(t, "b1", "ghee"), false)
	s.OnNotificationsToggled("b1", e.itemOf(t, "b1", "ghee"), false)
	e.waitTimers(t, 1)

	e.clock.Advance(39 * time.Minute)
	assert.Never(t, func() bool { return e.provider.count() > 1 }, quiet, tick)
	e.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 2 }, waitFor, tick)
}

func TestScheduler_ResumeWhenCappedDoesNotArm(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	capped := item("salt", 20, t0)
	capped.NotificationCount = 3

	s.OnNotificationsToggled("b1", &capped, false)
	assert.Zero(t, s.Registry().Len())

	s.OnItemQuantityChanged("b1", &capped)
	assert.Zero(t, s.Registry().Len())
}

func TestScheduler_PausedItemIsSkippedAtFire(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	paused := item("tea", 250, t0)
	paused.NotificationsPaused = true
	e.createBuyer(t, "b1", t0, paused)

	// Timer armed before the pause was persisted.
	s.OnItemAdded("b1", "tea")
	e.waitTimers(t, 1)
	e.clock.Advance(30 * time.Minute)

	require.Eventually(t, func() bool { return s.Registry().Len() == 0 }, waitFor, tick)
	assert.Zero(t, e.provider.count())
	assert.Zero(t, e.completer.callCount())
}

func TestScheduler_RemovalClearsTimer(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("soap", 40, t0), item("milk", 30, t0))
	s.OnItemAdded("b1", "soap")
	s.OnItemAdded("b1", "milk")

	s.OnItemRemoved("b1", "soap")
	s.OnItemRemoved("b1", "missing")
	assert.False(t, s.Registry().Pending(scheduler.Key{BuyerID: "b1", ItemID: "soap"}))
	assert.True(t, s.Registry().Pending(scheduler.Key{BuyerID: "b1", ItemID: "milk"}))

	s.OnCartCleared("b1")
	assert.Zero(t, s.Registry().Len())

	e.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return e.provider.count() > 0 }, quiet, tick)
}

func TestScheduler_ItemGoneBeforeFire(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.createBuyer(t, "b1", t0, item("egg", 70, t0))
	s.OnItemAdded("b1", "egg")
	s.OnItemAdded("ghost", "egg")

	_, err := storage.UpdateBuyer(context.Background(), e.store, "b1", func(b *storage.Buyer) error {
		b.Cart.RemoveItem("egg")
		b.Cart.Recalculate()
		return nil
	})
	require.NoError(t, err)

	e.waitTimers(t, 2)
	e.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return s.Registry().Len() == 0 }, waitFor, tick)
	assert.Zero(t, e.provider.count())
}

func TestScheduler_BelowMinDwellStaysDormant(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t, func(c *scheduler.Config) {
		c.BaseInterval = 5 * time.Minute
		c.MinDwell = 10 * time.Minute
	})
	e.createBuyer(t, "b1", t0, item("jam", 150, t0))
	s.OnItemAdded("b1", "jam")

	e.waitTimers(t, 1)
	e.clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return s.Registry().Len() == 0 }, waitFor, tick)
	e.clock.Advance(time.Hour)

	assert.Never(t, func() bool { return e.provider.count() > 0 }, quiet, tick)
	assert.Zero(t, e.itemOf(t, "b1", "jam").NotificationCount)
}

func TestScheduler_GenerationFailureDoesNotAdvance(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.completer.setErr(errModelDown)
	e.createBuyer(t, "b1", t0, item("rice", 120, t0))
	s.OnItemAdded("b1", "rice")

	e.waitTimers(t, 1)
	e.clock.Advance(30 * time.Minute)
	require.Eventually(t, func() bool { return e.completer.callCount() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return s.Registry().Len() == 0 }, waitFor, tick)

	it := e.itemOf(t, "b1", "rice")
	assert.Zero(t, it.NotificationCount)
	assert.Nil(t, it.LastNotificationSentAt)
	assert.Empty(t, e.buyer(t, "b1").Notifications)
	assert.Zero(t, e.provider.count())
	assert.True(t, e.events.has(scheduler.EventItemGenerationFailed))
}

func TestScheduler_DeliveryFailureKeepsRecordAndRearms(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	e.provider.err = assert.AnError
	e.createBuyer(t, "b1", t0, item("rice", 120, t0))
	s.OnItemAdded("b1", "rice")

	e.waitTimers(t, 1)
	e.clock.Advance(30 * time.Minute)
	// Re-armed for the second reminder.
	e.waitTimers(t, 1)

	b := e.buyer(t, "b1")
	require.Len(t, b.Notifications, 1)
	assert.Equal(t, storage.DeliveryFailed, b.Notifications[0].DeliveryStatus)
	assert.NotEmpty(t, b.Notifications[0].DeliveryError)
	assert.Equal(t, 1, b.Cart.Item("rice").NotificationCount)
	assert.True(t, e.events.has(scheduler.EventItemDeliveryFailed))
}

func TestScheduler_StartRearmsActiveCarts(t *testing.T) {
	e := newEnv(t)
	lastSent := t0.Add(-50 * time.Minute)

	sent := item("rice", 120, t0.Add(-90*time.Minute))
	sent.NotificationCount = 1
	sent.LastNotificationSentAt = &lastSent

	capped := item("dal", 90, t0.Add(-5*time.Hour))
	capped.NotificationCount = 3

	paused := item("tea", 250, t0.Add(-time.Hour))
	paused.NotificationsPaused = true

	overdue := item("salt", 20, t0.Add(-2*time.Hour))

	e.createBuyer(t, "b1", t0.Add(-50*time.Minute), sent, capped, paused, overdue)
	e.createBuyer(t, "b2", t0)

	s := e.newScheduler(t)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, s.Registry().Len())

	// overdue fires immediately.
	require.Eventually(t, func() bool { return e.provider.count() == 1 }, waitFor, tick)
	assert.Equal(t, 1, e.itemOf(t, "b1", "salt").NotificationCount)

	// rice: second reminder due 60m after the first, 10m from now. salt was re-armed too.
	e.waitTimers(t, 2)
	e.clock.Advance(9 * time.Minute)
	assert.Never(t, func() bool { return e.provider.count() > 1 }, quiet, tick)
	e.clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return e.provider.count() == 2 }, waitFor, tick)
	assert.Equal(t, 2, e.itemOf(t, "b1", "rice").NotificationCount)
}

func TestScheduler_StopCancelsTimers(t *testing.T) {
	e := newEnv(t)
	s := e.newScheduler(t)
	s.OnItemAdded("b1", "a")
	s.OnItemAdded("b1", "b")

	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, s.Registry().Len())

	s.OnItemAdded("b1", "c")
	assert.Zero(t, s.Registry().Len())
}
