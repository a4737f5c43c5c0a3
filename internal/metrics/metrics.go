// Package metrics turns scheduler events into Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiranaconnect/kirana/internal/eventbus"
	"github.com/kiranaconnect/kirana/internal/scheduler"
)

const namespace = "kirana"

// Metrics holds the reminder collectors. Register Handle as an event bus listener.
type Metrics struct {
	itemReminders *prometheus.CounterVec
	cartReminders *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. pending reports
// the number of armed reminder timers and may be nil.
func New(reg prometheus.Registerer, pending func() int) *Metrics {
	m := &Metrics{
		itemReminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_reminders_total",
			Help:      "Per-item reminder fires by outcome.",
		}, []string{"outcome"}),
		cartReminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_reminders_total",
			Help:      "Whole-cart reminders by outcome.",
		}, []string{"outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Abandoned-cart sweeps by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.itemReminders, m.cartReminders, m.sweepRuns)

	if pending != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_reminder_timers",
			Help:      "Reminder timers currently armed in this process.",
		}, func() float64 { return float64(pending()) }))
	}
	return m
}

// Handle counts one event. Unknown event types are ignored.
func (m *Metrics) Handle(e eventbus.Event) {
	switch e.Type {
	case scheduler.EventItemSent:
		m.itemReminders.WithLabelValues("sent").Inc()
	case scheduler.EventItemDeliveryFailed:
		m.itemReminders.WithLabelValues("delivery_failed").Inc()
	case scheduler.EventItemGenerationFailed:
		m.itemReminders.WithLabelValues("generation_failed").Inc()
	case scheduler.EventCartSent:
		m.cartReminders.WithLabelValues("sent").Inc()
	case scheduler.EventCartFailed:
		m.cartReminders.WithLabelValues("failed").Inc()
	case scheduler.EventSweepCompleted:
		m.sweepRuns.WithLabelValues("completed").Inc()
	case scheduler.EventSweepFailed:
		m.sweepRuns.WithLabelValues("failed").Inc()
	}
}
