// Package metrics provides Prometheus metrics for the people analytics dashboard core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the dashboard core.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Remote analytics service
	remoteRequests        *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec

	// Fetch state machine
	fetchTransitions    *prometheus.CounterVec
	staleResponses      *prometheus.CounterVec
	duplicateSuppressed *prometheus.CounterVec
	fetchLatency        *prometheus.HistogramVec
	inFlightFetches     prometheus.Gauge

	// Dataset registry
	uploads      *prometheus.CounterVec
	datasetCount prometheus.Gauge

	// Dispatch queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueError *prometheus.CounterVec
	workerCount       prometheus.Gauge

	// Bridge API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton manager behind the package helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors land on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "people_analytics",
		subsystem:        "dashboard",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.remoteRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("remote_requests_total"),
		Help: "Requests sent to the remote analytics service by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.remoteRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("remote_request_duration_milliseconds"),
		Help:    "Latency of remote analytics requests in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.fetchTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("fetch_transitions_total"),
		Help: "View fetch state transitions by view and target state",
	}, []string{"view", "state"})

	m.staleResponses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("stale_responses_total"),
		Help: "Responses discarded because their request key was superseded",
	}, []string{"view"})

	m.duplicateSuppressed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("duplicate_dispatch_suppressed_total"),
		Help: "Dispatches skipped because an equal request key was already in flight",
	}, []string{"view"})

	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("fetch_latency_milliseconds"),
		Help:    "Time from dispatch to settlement of a view fetch in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"view", "outcome"})

	m.inFlightFetches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("in_flight_fetches"),
		Help: "Analysis requests currently outstanding",
	})

	m.uploads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("uploads_total"),
		Help: "Dataset uploads by outcome (accepted, rejected, failed)",
	}, []string{"outcome"})

	m.datasetCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("datasets"),
		Help: "Datasets returned by the last successful registry listing",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("dispatch_queue_size"),
		Help: "Fetch jobs waiting for a worker",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("dispatch_queue_capacity"),
		Help: "Maximum number of queued fetch jobs",
	})

	m.queueEnqueueError = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("dispatch_enqueue_errors_total"),
		Help: "Fetch jobs rejected by the dispatch queue by reason",
	}, []string{"reason"})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("worker_count"),
		Help: "Fetch workers running",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("http_requests_total"),
		Help: "Bridge API requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "Bridge API request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_total"),
		Help: "Errors by component and error type",
	}, []string{"component", "error_type"})
}

// RecordRemoteRequest counts one remote call and observes its latency.
func RecordRemoteRequest(endpoint, method, statusCode string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.remoteRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.remoteRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(latencyMs)
}

// RecordFetchTransition counts a view entering state.
func RecordFetchTransition(view, state string) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchTransitions.WithLabelValues(view, state).Inc()
}

// RecordStaleResponse counts a response dropped for a superseded key.
func RecordStaleResponse(view string) {
	if !globalManager.enabled {
		return
	}
	globalManager.staleResponses.WithLabelValues(view).Inc()
}

// RecordDuplicateSuppressed counts a dispatch skipped for an in-flight key.
func RecordDuplicateSuppressed(view string) {
	if !globalManager.enabled {
		return
	}
	globalManager.duplicateSuppressed.WithLabelValues(view).Inc()
}

// RecordFetchLatency observes dispatch-to-settle time for a view.
func RecordFetchLatency(view, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchLatency.WithLabelValues(view, outcome).Observe(latencyMs)
}

// UpdateInFlightFetches sets the outstanding request count.
func UpdateInFlightFetches(n int64) {
	globalManager.inFlightFetches.Set(float64(n))
}

// RecordUpload counts an upload attempt by outcome.
func RecordUpload(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.uploads.WithLabelValues(outcome).Inc()
}

// UpdateDatasetCount sets the size of the last dataset listing.
func UpdateDatasetCount(n int) {
	globalManager.datasetCount.Set(float64(n))
}

// UpdateQueueSize sets the current dispatch queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the dispatch queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected fetch job.
func RecordQueueEnqueueError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueError.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running fetch workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records a bridge API request with its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by the package helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
