package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestTotal       *prometheus.CounterVec
	ingestImages      *prometheus.HistogramVec
	analysisTotal     *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	inferenceDuration *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "radiant",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "radiant",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "radiant",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "radiant",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Total ingestion batches by outcome.",
		},
		[]string{"service", "status"},
	)
	ingestImages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "radiant",
			Subsystem: "ingest",
			Name:      "batch_images",
			Help:      "Number of images per ingested batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "radiant",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total analysis runs by type and final status.",
		},
		[]string{"service", "type", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "radiant",
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "End-to-end analysis run duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "type"},
	)
	inferenceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "radiant",
			Subsystem: "inference",
			Name:      "generate_duration_seconds",
			Help:      "Inference backend generate duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "backend"},
	)

	registry.MustRegister(
		requestTotal, requestDuration, requestInFlight,
		ingestTotal, ingestImages,
		analysisTotal, analysisDuration, inferenceDuration,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		ingestTotal:       ingestTotal,
		ingestImages:      ingestImages,
		analysisTotal:     analysisTotal,
		analysisDuration:  analysisDuration,
		inferenceDuration: inferenceDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) ObserveRequest(service, method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RequestStarted()  { m.requestInFlight.Inc() }
func (m *HTTPServerMetrics) RequestFinished() { m.requestInFlight.Dec() }

func (m *HTTPServerMetrics) ObserveIngest(service string, images int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ingestTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.ingestImages.WithLabelValues(service).Observe(float64(images))
	}
}

func (m *HTTPServerMetrics) ObserveAnalysis(service, analysisType, status string, duration time.Duration) {
	m.analysisTotal.WithLabelValues(service, analysisType, status).Inc()
	m.analysisDuration.WithLabelValues(service, analysisType).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveInference(service, backend string, duration time.Duration) {
	m.inferenceDuration.WithLabelValues(service, backend).Observe(duration.Seconds())
}
