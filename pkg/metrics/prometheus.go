// Package metrics provides Prometheus metrics for the pitwall strategy service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// riskBuckets covers the [0,1] risk score range.
var riskBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the pitwall service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Inference pipeline
	predictions        *prometheus.CounterVec
	degradedDecisions  *prometheus.CounterVec
	inferenceLatency   *prometheus.HistogramVec
	inferenceErrors    *prometheus.CounterVec
	reconstructed      *prometheus.CounterVec
	pipelineErrors     *prometheus.CounterVec
	riskScore          prometheus.Histogram
	predictionDuration prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Lap queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	lapsDuplicate      prometheus.Counter

	// Workers and storage
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            *prometheus.CounterVec
	lapsStored              prometheus.Gauge
	storeLatency            *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitwall",
		subsystem:        "strategy",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.predictions = m.counterVec("predictions_total",
		"Total number of strategy recommendations by strategy and winning model", "strategy", "model")
	m.degradedDecisions = m.counterVec("degraded_decisions_total",
		"Decisions produced by a single surviving model, by the model that failed", "failed_model")
	m.inferenceLatency = m.histogramVec("inference_latency_milliseconds",
		"Per-model inference latency in milliseconds", "model")
	m.inferenceErrors = m.counterVec("inference_errors_total",
		"Inference failures by model and kind (error, panic, timeout)", "model", "kind")
	m.reconstructed = m.counterVec("reconstructed_fields_total",
		"Numeric telemetry fields estimated by the reconstructor", "field")
	m.pipelineErrors = m.counterVec("pipeline_errors_total",
		"Requests that failed, by error kind", "kind")
	m.riskScore = m.histogram("risk_score",
		"Distribution of derived risk scores", riskBuckets)
	m.predictionDuration = m.histogram("prediction_duration_milliseconds",
		"End-to-end prediction duration in milliseconds", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")

	m.queueSize = m.gauge("queue_size", "Current number of lap jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of lap jobs the queue accepts")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Lap jobs accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Lap jobs handed to workers")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total",
		"Lap jobs rejected by the queue, by reason", "reason")
	m.lapsDuplicate = m.counter("laps_duplicate_total", "Lap submissions ignored as duplicates")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running lap workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends on one lap job in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counterVec("worker_errors_total", "Worker failures by kind", "kind")
	m.lapsStored = m.gauge("laps_stored", "Number of lap predictions held by the store")
	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Store operation latency in milliseconds", "op")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds",
		"Average GC pause in milliseconds", m.histogramBuckets)
}

// Inference pipeline functions.

// RecordPrediction counts a recommendation by strategy and winning model.
func RecordPrediction(strategy, model string) {
	globalManager.predictions.WithLabelValues(strategy, model).Inc()
}

// RecordDegradedDecision counts a decision where failedModel did not contribute.
func RecordDegradedDecision(failedModel string) {
	globalManager.degradedDecisions.WithLabelValues(failedModel).Inc()
}

// RecordInferenceLatency records one model's inference latency.
func RecordInferenceLatency(model string, latencyMs float64) {
	globalManager.inferenceLatency.WithLabelValues(model).Observe(latencyMs)
}

// RecordInferenceError counts a failed inference task.
func RecordInferenceError(model, kind string) {
	globalManager.inferenceErrors.WithLabelValues(model, kind).Inc()
}

// RecordReconstructedField counts a field estimated by the reconstructor.
func RecordReconstructedField(field string) {
	globalManager.reconstructed.WithLabelValues(field).Inc()
}

// RecordPipelineError counts a failed prediction request by error kind.
func RecordPipelineError(kind string) {
	globalManager.pipelineErrors.WithLabelValues(kind).Inc()
}

// RecordRiskScore observes a derived risk score.
func RecordRiskScore(score float64) {
	globalManager.riskScore.Observe(score)
}

// RecordPredictionDuration observes end-to-end prediction time.
func RecordPredictionDuration(latencyMs float64) {
	globalManager.predictionDuration.Observe(latencyMs)
}

// HTTP functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Queue functions.

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordLapDuplicate counts a duplicate lap submission.
func RecordLapDuplicate() {
	globalManager.lapsDuplicate.Inc()
}

// Worker and store functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a worker failure.
func RecordWorkerError(kind string) {
	globalManager.workerErrors.WithLabelValues(kind).Inc()
}

// UpdateLapsStored sets the number of stored lap predictions.
func UpdateLapsStored(count int) {
	globalManager.lapsStored.Set(float64(count))
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// System functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
