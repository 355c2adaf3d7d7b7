package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cyclecount-service/pkg/config"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Cycle count lifecycle metrics
	CountOperationsCounter prometheus.CounterVec
	CountStatusGauge       prometheus.GaugeVec

	// Inventory adjustment metrics
	AdjustmentsAppliedCounter prometheus.Counter
	AdjustmentUnitsCounter    prometheus.CounterVec

	// Barcode lookup metrics
	LookupCounter prometheus.CounterVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Cycle count lifecycle metrics
	CountOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of cycle count lifecycle operations",
		},
		[]string{"operation"},
	)

	CountStatusGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_counts_by_status",
			Help: "Number of cycle counts per lifecycle status",
		},
		[]string{"status"},
	)

	// Inventory adjustment metrics
	AdjustmentsAppliedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_adjustments_applied_total",
			Help: "Total number of inventory adjustments issued by approvals",
		},
	)

	AdjustmentUnitsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_adjustment_units_total",
			Help: "Total units adjusted, split by direction",
		},
		[]string{"direction"},
	)

	// Barcode lookup metrics
	LookupCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_lookups_total",
			Help: "Total number of barcode/SKU lookups",
		},
		[]string{"result"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordCountOperation increments the counter for cycle count operations
func RecordCountOperation(operation string) {
	CountOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordAdjustments tracks adjustments issued by a successful approval
func RecordAdjustments(deltas []int) {
	for _, delta := range deltas {
		AdjustmentsAppliedCounter.Inc()
		if delta >= 0 {
			AdjustmentUnitsCounter.WithLabelValues("up").Add(float64(delta))
		} else {
			AdjustmentUnitsCounter.WithLabelValues("down").Add(float64(-delta))
		}
	}
}

// RecordLookup increments the counter for barcode/SKU lookups
func RecordLookup(found bool) {
	if found {
		LookupCounter.WithLabelValues("hit").Inc()
	} else {
		LookupCounter.WithLabelValues("miss").Inc()
	}
}
