package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	eventsInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "radiant",
			Subsystem: "worker",
			Name:      "audit_events_total",
			Help:      "Total audit events consumed by action and status.",
		},
		[]string{"service", "action", "status"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "radiant",
			Subsystem: "worker",
			Name:      "audit_event_duration_seconds",
			Help:      "Audit event handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "action"},
	)
	eventsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "radiant",
			Subsystem: "worker",
			Name:      "audit_events_in_flight",
			Help:      "Number of audit events being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(eventsTotal, eventDuration, eventsInFlight)

	return &WorkerMetrics{
		registry:       registry,
		eventsTotal:    eventsTotal,
		eventDuration:  eventDuration,
		eventsInFlight: eventsInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service, action string, duration time.Duration, err error) {
	m.eventsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(service, action, status).Inc()
	m.eventDuration.WithLabelValues(service, action).Observe(duration.Seconds())
}
