package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/klokku/eventcal/internal/event_bus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	eventChanges    *prometheus.CounterVec
	remindersSent   prometheus.Counter
	reminderFailure prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcal_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventcal_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		eventChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventcal_calendar_event_changes_total",
			Help: "Persisted calendar event mutations by type.",
		}, []string{"type"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcal_reminders_sent_total",
			Help: "Reminders dispatched, one per event occurrence.",
		}),
		reminderFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventcal_reminder_notification_failures_total",
			Help: "Reminder notifications that could not be delivered.",
		}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.eventChanges,
		m.remindersSent,
		m.reminderFailure,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) ReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}

func (m *Metrics) ReminderFailed() {
	if m == nil {
		return
	}
	m.reminderFailure.Inc()
}

// Subscribe counts calendar mutations published on the bus.
func (m *Metrics) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	count := func(e event_bus.Event) error {
		m.eventChanges.WithLabelValues(string(e.Type)).Inc()
		return nil
	}
	unsubscribers := []func(){
		bus.Subscribe(event_bus.CalendarEventCreatedType, count),
		bus.Subscribe(event_bus.CalendarEventUpdatedType, count),
		bus.Subscribe(event_bus.CalendarEventDeletedType, count),
	}
	return func() {
		for _, u := range unsubscribers {
			u()
		}
	}
}
