package mqttv3

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting client metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Value returns the current value.
	Value() float64
}

// Metric names emitted by the client.
const (
	// MetricPacketsSent counts control packets handed to the carrier,
	// labeled by packet_type.
	MetricPacketsSent = "mqtt_packets_sent_total"

	// MetricPacketsReceived counts control packets decoded from the
	// carrier, labeled by packet_type.
	MetricPacketsReceived = "mqtt_packets_received_total"

	// MetricBytesSent counts frame bytes handed to the carrier.
	MetricBytesSent = "mqtt_bytes_sent_total"

	// MetricBytesReceived counts frame bytes received from the carrier.
	MetricBytesReceived = "mqtt_bytes_received_total"

	// MetricDecodeErrors counts frames the decoder rejected.
	MetricDecodeErrors = "mqtt_decode_errors_total"

	// MetricKeepAliveTimeouts counts keep-alive timeouts.
	MetricKeepAliveTimeouts = "mqtt_keepalive_timeouts_total"

	// MetricSessionState gauges the current session state value.
	MetricSessionState = "mqtt_session_state"
)

// NoOpMetrics is a Metrics implementation that does nothing.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return noOpMetric{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return noOpMetric{}
}

type noOpMetric struct{}

func (noOpMetric) Inc()           {}
func (noOpMetric) Add(_ float64)  {}
func (noOpMetric) Set(_ float64)  {}
func (noOpMetric) Dec()           {}
func (noOpMetric) Value() float64 { return 0 }
