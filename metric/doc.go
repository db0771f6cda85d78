// Package metric provides Prometheus-based metrics collection for UIMediator
// observability.
//
// The package offers a centralized metrics registry managing both core library
// metrics (component registry size, dispatch throughput, queue depth, event bus
// health) and custom caller-specific metrics. The mediator never opens network
// listeners; the registry hands embedding applications an http.Handler (or the
// raw prometheus.Registry) to expose however they already expose operational
// endpoints.
//
// # Architecture
//
// The package follows a two-layer design:
//
//  1. Core Metrics: library-level metrics automatically registered (Metrics type)
//  2. Caller Registry: extensible registration for custom metrics (MetricsRegistrar interface)
//
// This separates infrastructure concerns (is the bus up, is the queue draining)
// from application concerns (how many deals were created) while keeping a
// single gatherable registry.
//
// # Basic Usage
//
// Setting up metrics collection:
//
//	registry := metric.NewMetricsRegistry()
//
//	med, err := mediator.New(bus, mediator.WithMetrics(registry))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Expose wherever the application serves ops endpoints
//	mux.Handle("/metrics", registry.Handler())
//
// Core metrics are recorded by the mediator and the bus adapters as they run:
//
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.SetQueueDepth(3)
//	coreMetrics.RecordMessageProcessed(metric.StatusDelivered)
//	coreMetrics.RecordBusStatus(true)
//
// # Core Metrics
//
// All core metrics use the namespace "uimediator":
//
//   - uimediator_registry_components{kind="..."} - registered components by kind
//   - uimediator_rules_active - installed mediation rules
//   - uimediator_dispatch_queue_depth - messages waiting for dispatch
//   - uimediator_dispatch_enqueued_total - messages accepted for dispatch
//   - uimediator_dispatch_processed_total{status="delivered|dropped|error"}
//   - uimediator_dispatch_duration_seconds{operation="send|broadcast"}
//   - uimediator_errors_total{component="...",class="transient|invalid|fatal"}
//   - uimediator_bus_connected, uimediator_bus_rtt_milliseconds,
//     uimediator_bus_reconnects_total
//   - uimediator_bus_events_emitted_total, uimediator_bus_events_delivered_total
//
// # Caller-Specific Metrics
//
// Callers register custom metrics through the MetricsRegistrar interface,
// keyed by an owner name to prevent collisions:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "deals_created_total",
//	    Help: "Total number of deals created through the mediator",
//	})
//	if err := registry.RegisterCounter("deal-service", "deals_created_total", counter); err != nil {
//	    // duplicate registration returns an Invalid-class error
//	}
//
// Accepting the interface rather than the concrete registry keeps components
// testable with mock registrars.
//
// # Thread Safety
//
// All registry operations are thread-safe. Registration uses mutex protection;
// metric recording is lock-free per the Prometheus client guarantees.
package metric
