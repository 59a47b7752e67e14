// Package metrics provides Prometheus metrics for the parkwise garage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Garage business metrics
	eventsProcessed   *prometheus.CounterVec
	eventsRejected    *prometheus.CounterVec
	processingLatency prometheus.Histogram
	revenueCents      *prometheus.CounterVec
	sectorOccupancy   *prometheus.GaugeVec
	sectorUtilization *prometheus.GaugeVec
	sectorMultiplier  *prometheus.GaugeVec
	parkedVehicles    prometheus.Gauge
	garageImports     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositoryRollbacks     prometheus.Counter
	ledgerEntries           prometheus.Gauge

	// Journal
	journalWrites  prometheus.Counter
	journalErrors  prometheus.Counter
	journalLatency prometheus.Histogram
	journalGaps    *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	workerRetries           prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "parkwise",
		subsystem:        "garage",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.eventsProcessed = auto.NewCounterVec(
		m.counterOpts("events_processed_total", "Vehicle events accepted, by event type"),
		[]string{"event_type"},
	)
	m.eventsRejected = auto.NewCounterVec(
		m.counterOpts("events_rejected_total", "Vehicle events rejected, by event type and error kind"),
		[]string{"event_type", "kind"},
	)
	m.processingLatency = auto.NewHistogram(
		m.histogramOpts("event_processing_latency_milliseconds", "Event processing latency in milliseconds", nil),
	)
	m.revenueCents = auto.NewCounterVec(
		m.counterOpts("revenue_cents_total", "Charges billed on EXIT in minor currency units, by sector"),
		[]string{"sector"},
	)
	m.sectorOccupancy = auto.NewGaugeVec(
		m.gaugeOpts("sector_occupancy", "Vehicles currently parked, by sector"),
		[]string{"sector"},
	)
	m.sectorUtilization = auto.NewGaugeVec(
		m.gaugeOpts("sector_utilization_ratio", "Occupancy divided by capacity, by sector"),
		[]string{"sector"},
	)
	m.sectorMultiplier = auto.NewGaugeVec(
		m.gaugeOpts("sector_price_multiplier", "Current dynamic price multiplier, by sector"),
		[]string{"sector"},
	)
	m.parkedVehicles = auto.NewGauge(m.gaugeOpts("parked_vehicles", "Vehicles currently parked in the garage"))
	m.garageImports = auto.NewCounter(m.counterOpts("garage_imports_total", "Garage configurations installed"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryUpdateLatency = auto.NewHistogram(
		m.histogramOpts("repository_update_latency_milliseconds", "Committed transaction latency in milliseconds", nil),
	)
	m.repositoryQueryLatency = auto.NewHistogram(
		m.histogramOpts("repository_query_latency_milliseconds", "Read transaction latency in milliseconds", nil),
	)
	m.repositoryRollbacks = auto.NewCounter(m.counterOpts("repository_rollbacks_total", "Transactions rolled back"))
	m.ledgerEntries = auto.NewGauge(m.gaugeOpts("ledger_entries", "Entries in the in-memory ledger"))

	m.journalWrites = auto.NewCounter(m.counterOpts("journal_writes_total", "Ledger entries written to the journal"))
	m.journalErrors = auto.NewCounter(m.counterOpts("journal_errors_total", "Failed journal writes"))
	m.journalLatency = auto.NewHistogram(
		m.histogramOpts("journal_write_latency_milliseconds", "Journal write latency in milliseconds", nil),
	)
	m.journalGaps = auto.NewCounterVec(
		m.counterOpts("journal_gaps_total", "Replayed entries that did not fit the rebuilt state"),
		[]string{"reason"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Entries waiting in the journal queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Journal queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Journal queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Entries enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Entries dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue failures"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time from enqueue to dequeue in milliseconds", nil),
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured journal workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Journal workers running"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Journal workers waiting for entries"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Per-entry worker latency in milliseconds", nil),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Entries a worker gave up on"))
	m.workerRetries = auto.NewCounter(m.counterOpts("worker_retries_total", "Sink retries"))

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "Last GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// Garage metrics.

// RecordEventProcessed counts an accepted event.
func RecordEventProcessed(eventType string) {
	globalManager.eventsProcessed.WithLabelValues(eventType).Inc()
}

// RecordEventRejected counts a rejected event by its error kind.
func RecordEventRejected(eventType, kind string) {
	globalManager.eventsRejected.WithLabelValues(eventType, kind).Inc()
}

// RecordProcessingLatency records event processing latency in milliseconds.
func RecordProcessingLatency(latencyMs float64) {
	globalManager.processingLatency.Observe(latencyMs)
}

// RecordRevenue adds an EXIT charge in cents to the sector's revenue.
func RecordRevenue(sector string, cents int64) {
	if cents <= 0 {
		return
	}
	globalManager.revenueCents.WithLabelValues(sector).Add(float64(cents))
}

// UpdateSectorOccupancy sets a sector's occupancy and utilization.
func UpdateSectorOccupancy(sector string, occupancy, capacity int) {
	globalManager.sectorOccupancy.WithLabelValues(sector).Set(float64(occupancy))
	if capacity > 0 {
		globalManager.sectorUtilization.WithLabelValues(sector).Set(float64(occupancy) / float64(capacity))
	}
}

// UpdateSectorMultiplier sets a sector's current price multiplier.
func UpdateSectorMultiplier(sector string, multiplier float64) {
	globalManager.sectorMultiplier.WithLabelValues(sector).Set(multiplier)
}

// ResetSectors drops all per-sector series, used when the garage is replaced.
func ResetSectors() {
	globalManager.sectorOccupancy.Reset()
	globalManager.sectorUtilization.Reset()
	globalManager.sectorMultiplier.Reset()
}

// UpdateParkedVehicles sets the number of parked vehicles.
func UpdateParkedVehicles(count int) {
	globalManager.parkedVehicles.Set(float64(count))
}

// RecordGarageImport counts an installed garage configuration.
func RecordGarageImport() {
	globalManager.garageImports.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository metrics.

// RecordRepositoryUpdateLatency records committed transaction latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records read transaction latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryRollback counts a rolled back transaction.
func RecordRepositoryRollback() {
	globalManager.repositoryRollbacks.Inc()
}

// UpdateLedgerEntries sets the in-memory ledger size.
func UpdateLedgerEntries(count int) {
	globalManager.ledgerEntries.Set(float64(count))
}

// Journal metrics.

// RecordJournalWrite records a successful journal write.
func RecordJournalWrite(latencyMs float64) {
	globalManager.journalWrites.Inc()
	globalManager.journalLatency.Observe(latencyMs)
}

// RecordJournalError counts a failed journal write.
func RecordJournalError() {
	globalManager.journalErrors.Inc()
}

// RecordJournalGap counts a replayed entry that was applied to plate state
// only because an earlier write went missing.
func RecordJournalGap(reason string) {
	globalManager.journalGaps.WithLabelValues(reason).Inc()
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-entry worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerRetry increments the worker retry counter.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap memory in use.
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
