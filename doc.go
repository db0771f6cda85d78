// Package uimediator provides an in-process, rule-driven message mediator
// that decouples the components of a CRM frontend from one another.
//
// # Philosophy
//
// UI components (forms, modals, data panels, business-logic services) never
// reference each other directly. Each component registers with the mediator
// under a stable id; cross-component interactions flow through mediated
// messages and bus events. A component can be added, replaced, or removed
// without touching any other component - the coupling lives in a small,
// inspectable rule set instead of in the components themselves.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Mediator                  │  Registry, rule engine,
//	│ (register, send, broadcast, rules)  │  FIFO queue + drain
//	└─────────────────────────────────────┘
//	           ↓ routes via
//	┌─────────────────────────────────────┐
//	│           Rule Set                  │  Default policies +
//	│  (ordered, first-registered first)  │  user rules + rule files
//	└─────────────────────────────────────┘
//	           ↓ emits on
//	┌─────────────────────────────────────┐
//	│           Event Bus                 │  In-memory for embedding,
//	│     (subscribe / emit, NATS)        │  NATS across processes
//	└─────────────────────────────────────┘
//
// Messages are processed strictly one at a time in enqueue order. Every
// message is evaluated against the ordered rule set; matched rule actions
// run sequentially with panic containment and error isolation, and a
// message that matches no rule falls back to direct event forwarding when
// it is shaped as an event.
//
// # Packages
//
//   - mediator: registry, rule engine, message queue, default policies,
//     declarative rule files, tracing, metrics
//   - eventbus: Bus contract, synchronous in-memory bus, NATS adapter,
//     event name constants and scoped-name helpers
//   - errors: classified error handling (transient / invalid / fatal)
//   - metric: Prometheus metrics registry shared by bus and mediator
//   - testutil: recording bus and stub components for tests
//
// # Usage
//
//	bus := eventbus.NewMemoryBus()
//	m, err := mediator.New(bus,
//	    mediator.WithLogger(logger),
//	    mediator.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	// Components register under stable ids.
//	err = m.Register("contactForm", form, mediator.Metadata{Kind: mediator.KindForm})
//
//	// Cross-component interactions are mediated messages.
//	err = m.Send(ctx, "contactForm", "dealService", mediator.Message{
//	    "type":       "submit",
//	    "entityType": "contact",
//	    "formData":   formData,
//	})
//
// Rules can also be loaded from JSON or YAML files:
//
//	added, err := m.AddRuleSetFile("rules/crm.yaml")
//
// # Design Principles
//
// Explicit dependencies:
//   - The mediator is a handle, not a singleton; the bus is injected.
//   - Components implement a two-method Notifiable interface.
//
// Isolation:
//   - A failing rule action is logged and counted, never propagated.
//   - A failing broadcast target does not fail the broadcast.
//   - A panicking component cannot take down the processing loop.
//
// Testability:
//   - Synchronous in-memory bus for deterministic tests.
//   - testutil ships a recording bus and stub components.
//   - NATS integration tests run against testcontainers.
package uimediator
