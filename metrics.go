package mqttroute

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// MetricTypeCounter is a monotonically increasing counter.
	MetricTypeCounter MetricType = 0
	// MetricTypeGauge is a value that can go up and down.
	MetricTypeGauge MetricType = 1
	// MetricTypeHistogram tracks distribution of values.
	MetricTypeHistogram MetricType = 2
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics. Implementations must
// be safe for concurrent use; the router records from publisher goroutines.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	Count() uint64
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return noOpMetric{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return noOpMetric{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return noOpMetric{}
}

type noOpMetric struct{}

func (noOpMetric) Inc()                          {}
func (noOpMetric) Dec()                          {}
func (noOpMetric) Set(_ float64)                 {}
func (noOpMetric) Add(_ float64)                 {}
func (noOpMetric) Value() float64                { return 0 }
func (noOpMetric) Observe(_ float64)             {}
func (noOpMetric) ObserveDuration(time.Duration) {}
func (noOpMetric) Count() uint64                 { return 0 }
func (noOpMetric) Sum() float64                  { return 0 }

// Metric names recorded by the registry and router.
const (
	// MetricSubscriptions is the current number of subscriptions.
	MetricSubscriptions = "mqttroute_subscriptions"

	// MetricFilters is the current number of distinct filters.
	MetricFilters = "mqttroute_filters"

	// MetricSubscribers is the current number of subscribers with at least one subscription.
	MetricSubscribers = "mqttroute_subscribers"

	// MetricMessagesRouted is the total number of messages routed.
	MetricMessagesRouted = "mqttroute_messages_routed_total"

	// MetricMessagesDropped is the total number of messages dropped by interceptors.
	MetricMessagesDropped = "mqttroute_messages_dropped_total"

	// MetricDeliveries is the total number of successful deliveries, labelled by qos.
	MetricDeliveries = "mqttroute_deliveries_total"

	// MetricDeliveryFailures is the total number of failed deliveries.
	MetricDeliveryFailures = "mqttroute_delivery_failures_total"

	// MetricRouteDuration is the time spent routing one message.
	MetricRouteDuration = "mqttroute_route_duration_seconds"

	// MetricFormatErrors is the total number of rejected topics and filters.
	MetricFormatErrors = "mqttroute_format_errors_total"
)
