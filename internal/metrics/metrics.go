// Package metrics exposes the service's Prometheus instrumentation.
//
// A permanently corrupt stored timestamp and a reminder whose delivery
// never succeeds are both tolerated forever by the scheduler, which makes
// them invisible in logs past the first few ticks. They are surfaced here
// for alerting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery failure reasons used as label values.
const (
	ReasonChannelUnavailable = "channel_unavailable"
	ReasonTransport          = "transport"
	ReasonMarkSent           = "mark_sent"
)

// Metrics records service-level counters. A nil *Metrics is a no-op, so
// tests can leave it out.
type Metrics struct {
	remindersCreated  prometheus.Counter
	remindersSent     prometheus.Counter
	deliveryFailures  *prometheus.CounterVec
	corruptTimestamps prometheus.Counter
	tickDuration      prometheus.Histogram
	pendingReminders  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		remindersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zuppa_reminders_created_total",
			Help: "Reminders accepted by the submission surface.",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zuppa_reminders_delivered_total",
			Help: "Reminders delivered and committed as sent.",
		}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zuppa_delivery_failures_total",
			Help: "Per-reminder delivery failures; the reminder stays pending and retries next tick.",
		}, []string{"reason"}),
		corruptTimestamps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zuppa_corrupt_timestamps_total",
			Help: "Pending rows skipped because their stored due time matches no known encoding.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zuppa_tick_duration_seconds",
			Help:    "Duration of each scan-and-deliver tick.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		pendingReminders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zuppa_pending_reminders",
			Help: "Pending reminders observed by the last tick.",
		}),
	}

	reg.MustRegister(
		m.remindersCreated,
		m.remindersSent,
		m.deliveryFailures,
		m.corruptTimestamps,
		m.tickDuration,
		m.pendingReminders,
	)
	return m
}

func (m *Metrics) ReminderCreated() {
	if m == nil {
		return
	}
	m.remindersCreated.Inc()
}

func (m *Metrics) ReminderDelivered() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

func (m *Metrics) DeliveryFailed(reason string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CorruptTimestamp() {
	if m == nil {
		return
	}
	m.corruptTimestamps.Inc()
}

func (m *Metrics) TickCompleted(took time.Duration, pending int) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(took.Seconds())
	m.pendingReminders.Set(float64(pending))
}
