package metrics

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// API metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	// Business metrics
	submissionsTotal  *prometheus.CounterVec
	runsStarted       prometheus.Counter
	runsCompleted     *prometheus.CounterVec
	runDuration       prometheus.Histogram
	pollAttempts      prometheus.Histogram
	webhookDeliveries *prometheus.CounterVec
	reportsExported   *prometheus.CounterVec

	// System metrics
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vindash_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		apiRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vindash_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		submissionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vindash_submissions_total",
				Help: "Total number of VIN submissions by final status",
			},
			[]string{"status"},
		),
		runsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vindash_runs_started_total",
				Help: "Total number of scraping runs started",
			},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vindash_runs_completed_total",
				Help: "Total number of scraping runs finished by terminal status",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vindash_run_duration_seconds",
				Help:    "Scraping run duration from start to terminal status",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		pollAttempts: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vindash_run_poll_attempts",
				Help:    "Number of status polls per run",
				Buckets: prometheus.LinearBuckets(1, 10, 12),
			},
		),
		webhookDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vindash_webhook_deliveries_total",
				Help: "Total number of webhook status deliveries",
			},
			[]string{"status", "outcome"},
		),
		reportsExported: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vindash_reports_exported_total",
				Help: "Total number of report exports by format",
			},
			[]string{"format"},
		),

		memoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vindash_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),
		goroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vindash_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}
}

// RecordAPIRequest records an API request with its duration
func (m *Metrics) RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.apiRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.apiRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSubmission records a submission reaching a final status
func (m *Metrics) RecordSubmission(status string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
}

// RecordRunStarted records a scraping run being started
func (m *Metrics) RecordRunStarted() {
	m.runsStarted.Inc()
}

// RecordRunCompleted records a run reaching a terminal status
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RecordPollAttempts records how many polls a run needed
func (m *Metrics) RecordPollAttempts(attempts int) {
	m.pollAttempts.Observe(float64(attempts))
}

// RecordWebhookDelivery records an inbound webhook delivery
func (m *Metrics) RecordWebhookDelivery(status, outcome string) {
	m.webhookDeliveries.WithLabelValues(status, outcome).Inc()
}

// RecordReportExported records a report export
func (m *Metrics) RecordReportExported(format string) {
	m.reportsExported.WithLabelValues(format).Inc()
}

// UpdateSystemMetrics updates memory and goroutine gauges
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.memoryUsage.Set(float64(memStats.Alloc))
	m.goroutineCount.Set(float64(runtime.NumGoroutine()))
}

// StartMetricsCollection periodically updates system metrics until the
// context is cancelled.
func (m *Metrics) StartMetricsCollection(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateSystemMetrics()
		}
	}
}
