package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcome labels used with RecordMessageProcessed.
const (
	StatusDelivered = "delivered"
	StatusDropped   = "dropped"
	StatusError     = "error"
)

// Metrics contains all library-level metrics (not component-specific)
type Metrics struct {
	// Registry and rule engine metrics
	ComponentsRegistered *prometheus.GaugeVec
	RulesActive          prometheus.Gauge

	// Dispatch metrics
	QueueDepth        prometheus.Gauge
	MessagesEnqueued  prometheus.Counter
	MessagesProcessed *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec

	// Event bus metrics
	BusConnected    prometheus.Gauge
	BusRTT          prometheus.Gauge
	BusReconnects   prometheus.Counter
	EventsEmitted   prometheus.Counter
	EventsDelivered prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all library metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentsRegistered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "uimediator",
				Subsystem: "registry",
				Name:      "components",
				Help:      "Number of registered components by kind",
			},
			[]string{"kind"},
		),

		RulesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uimediator",
				Subsystem: "rules",
				Name:      "active",
				Help:      "Number of installed mediation rules",
			},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uimediator",
				Subsystem: "dispatch",
				Name:      "queue_depth",
				Help:      "Number of messages waiting in the dispatch queue",
			},
		),

		MessagesEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "dispatch",
				Name:      "enqueued_total",
				Help:      "Total number of messages accepted for dispatch",
			},
		),

		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "dispatch",
				Name:      "processed_total",
				Help:      "Total number of messages processed by outcome",
			},
			[]string{"status"},
		),

		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "uimediator",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Message dispatch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		BusConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uimediator",
				Subsystem: "bus",
				Name:      "connected",
				Help:      "Event bus connection status (0=disconnected, 1=connected)",
			},
		),

		BusRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uimediator",
				Subsystem: "bus",
				Name:      "rtt_milliseconds",
				Help:      "Event bus round-trip time in milliseconds",
			},
		),

		BusReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "bus",
				Name:      "reconnects_total",
				Help:      "Total number of event bus reconnections",
			},
		),

		EventsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "bus",
				Name:      "events_emitted_total",
				Help:      "Total number of events emitted on the bus",
			},
		),

		EventsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "uimediator",
				Subsystem: "bus",
				Name:      "events_delivered_total",
				Help:      "Total number of events delivered to subscribers",
			},
		),
	}
}

// SetComponentCount updates the registered component gauge for a kind
func (c *Metrics) SetComponentCount(kind string, count int) {
	c.ComponentsRegistered.WithLabelValues(kind).Set(float64(count))
}

// SetRulesActive updates the installed rule gauge
func (c *Metrics) SetRulesActive(count int) {
	c.RulesActive.Set(float64(count))
}

// SetQueueDepth updates the dispatch queue depth gauge
func (c *Metrics) SetQueueDepth(depth int) {
	c.QueueDepth.Set(float64(depth))
}

// RecordMessageEnqueued increments the enqueued message counter
func (c *Metrics) RecordMessageEnqueued() {
	c.MessagesEnqueued.Inc()
}

// RecordMessageProcessed increments the processed message counter
func (c *Metrics) RecordMessageProcessed(status string) {
	c.MessagesProcessed.WithLabelValues(status).Inc()
}

// RecordDispatchDuration records dispatch time for an operation
func (c *Metrics) RecordDispatchDuration(operation string, duration time.Duration) {
	c.DispatchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordBusStatus updates the event bus connection status
func (c *Metrics) RecordBusStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.BusConnected.Set(value)
}

// RecordBusRTT updates the event bus round-trip time
func (c *Metrics) RecordBusRTT(rtt time.Duration) {
	c.BusRTT.Set(float64(rtt.Milliseconds()))
}

// RecordBusReconnect increments the reconnection counter
func (c *Metrics) RecordBusReconnect() {
	c.BusReconnects.Inc()
}

// RecordEventEmitted increments the emitted event counter
func (c *Metrics) RecordEventEmitted() {
	c.EventsEmitted.Inc()
}

// RecordEventDelivered increments the delivered event counter
func (c *Metrics) RecordEventDelivered() {
	c.EventsDelivered.Inc()
}
