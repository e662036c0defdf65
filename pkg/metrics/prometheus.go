// Package metrics provides Prometheus metrics for the crux ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the crux service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Judging
	judgingInputs     *prometheus.CounterVec
	judgingLatency    prometheus.Histogram
	bulkEntries       prometheus.Counter
	duplicateRequests prometheus.Counter

	// Rankings
	rankingComputeLatency *prometheus.HistogramVec
	rankingPublished      *prometheus.CounterVec
	rankingStaleDrops     *prometheus.CounterVec
	snapshotHits          prometheus.Counter
	snapshotRebuilds      prometheus.Counter

	// Repository
	repositoryShardCount    prometheus.Gauge
	repositoryResultsTotal  prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Live subscribers
	websocketClients prometheus.Gauge
	websocketDropped *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crux",
		subsystem:        "rankings",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.judgingInputs = m.counterVec("judging_inputs_total", "Judging inputs by outcome", "outcome")
	m.judgingLatency = m.histogram("judging_latency_milliseconds", "Time to validate and store one judging input")
	m.bulkEntries = m.counter("bulk_entries_total", "Bulk result entries applied")
	m.duplicateRequests = m.counter("duplicate_requests_total", "Judging inputs dropped by request id")

	m.rankingComputeLatency = m.histogramVec("ranking_compute_latency_milliseconds",
		"Time to compute the ranking of a scope", "scope")
	m.rankingPublished = m.counterVec("ranking_published_total", "Ranking events published", "scope")
	m.rankingStaleDrops = m.counterVec("ranking_stale_drops_total",
		"Ranking snapshots dropped because a newer version was already out", "stage")
	m.snapshotHits = m.counter("snapshot_hits_total", "Ranking reads served from the snapshot cache")
	m.snapshotRebuilds = m.counter("snapshot_rebuilds_total", "Ranking snapshots rebuilt from results")

	m.repositoryShardCount = m.gauge("repository_shard_count", "Total number of repository shards")
	m.repositoryResultsTotal = m.gauge("repository_results_total", "Stored results across all shards")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Result mutation latency")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Result query latency")

	m.queueSize = m.gauge("queue_size", "Pending recompute jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum pending recompute jobs")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Recompute jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Recompute jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Recompute jobs refused by a full or closed queue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time a job waited in the queue")

	m.workerActiveCount = m.gauge("worker_active_count", "Workers computing a ranking")
	m.workerIdleCount = m.gauge("worker_idle_count", "Workers waiting for a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to process one job")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed")

	m.websocketClients = m.gauge("websocket_clients", "Connected live ranking subscribers")
	m.websocketDropped = m.counterVec("websocket_dropped_total", "Subscribers disconnected by the server", "reason")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause")
}

// RecordJudging counts one judging input by outcome (stored, invalid, capacity, ...).
func RecordJudging(outcome string) {
	globalManager.judgingInputs.WithLabelValues(outcome).Inc()
}

// RecordJudgingLatency records judging latency in milliseconds.
func RecordJudgingLatency(latencyMs float64) {
	globalManager.judgingLatency.Observe(latencyMs)
}

// RecordBulkEntries adds applied bulk entries.
func RecordBulkEntries(n int) {
	globalManager.bulkEntries.Add(float64(n))
}

// RecordDuplicateRequest increments the duplicate request counter.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
}

// RecordRankingCompute records the compute time of one scope ranking.
func RecordRankingCompute(scope string, latencyMs float64) {
	globalManager.rankingComputeLatency.WithLabelValues(scope).Observe(latencyMs)
}

// RecordRankingPublished increments published events of a scope kind.
func RecordRankingPublished(scope string) {
	globalManager.rankingPublished.WithLabelValues(scope).Inc()
}

// RecordStaleDrop counts a snapshot dropped at the given stage (commit, websocket).
func RecordStaleDrop(stage string) {
	globalManager.rankingStaleDrops.WithLabelValues(stage).Inc()
}

// RecordSnapshotHit increments cache hits.
func RecordSnapshotHit() {
	globalManager.snapshotHits.Inc()
}

// RecordSnapshotRebuild increments cache rebuilds.
func RecordSnapshotRebuild() {
	globalManager.snapshotRebuilds.Inc()
}

// UpdateRepositoryShardCount sets the total number of repository shards.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// UpdateRepositoryResultsTotal sets the number of stored results.
func UpdateRepositoryResultsTotal(count int) {
	globalManager.repositoryResultsTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateWebsocketClients sets the number of connected subscribers.
func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

// RecordWebsocketDropped counts a subscriber disconnected for reason.
func RecordWebsocketDropped(reason string) {
	globalManager.websocketDropped.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
