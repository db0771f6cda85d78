// Package eventbus provides the publish/subscribe fabric for UIMediator.
//
// # Overview
//
// Components never call each other; they emit events and subscribe to events.
// This package defines the Bus contract the mediator coordinates over and two
// implementations:
//
//   - MemoryBus: synchronous in-process delivery, zero dependencies at
//     runtime. The default for tests and single-process applications.
//   - NATSBus: events routed through a NATS cluster, for applications whose
//     components span processes. Includes automatic reconnection, health
//     monitoring, circuit breaker protection on emissions, and connection
//     metrics.
//
// # The Bus Contract
//
// A Bus delivers each emitted event to every current subscriber of that exact
// event name. Subscriber failures are isolated: a handler that returns an
// error or panics is logged and counted, and delivery continues to the
// remaining subscribers. Subscribe returns an UnsubscribeFunc that is safe to
// call more than once.
//
//	bus := eventbus.NewMemoryBus()
//
//	unsub, err := bus.Subscribe(eventbus.EventDealCreated, func(ctx context.Context, event string, payload any) error {
//	    // react to the deal
//	    return nil
//	})
//	if err != nil {
//	    return err
//	}
//	defer unsub()
//
//	err = bus.Emit(ctx, eventbus.EventDealCreated, map[string]any{"dealId": "d-42"})
//
// # Event Naming
//
// Event names are colon-separated with the most specific segment last:
// "deal:created", "form:validated:contactForm", "modal:closed:settingsModal".
// Constants and builders for the well-known names live in this package so
// components, the mediator's standing rules, and applications agree on
// spelling. Names containing spaces or NATS wildcard characters are rejected.
//
// # NATS Transport
//
// NATSBus maps each event name onto a subject under a configurable prefix
// ("ui.events" by default), encodes the payload as a JSON envelope, and
// decodes on delivery. Because the envelope carries the exact event name, the
// subject mapping never needs reversing. Subscribers on a NATSBus therefore
// observe map[string]any payloads regardless of the concrete type emitted;
// applications that need richer types decode the map themselves.
//
//	bus, err := eventbus.NewNATSBus("nats://localhost:4222",
//	    eventbus.WithName("crm-ui"),
//	    eventbus.WithSubjectPrefix("crm.ui.events"),
//	    eventbus.WithBusMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := bus.Connect(ctx); err != nil {
//	    return err
//	}
//	defer bus.Close(ctx)
//
// Each delivery runs on a NATS callback goroutine with a context bounded by
// the configured delivery timeout (30 seconds by default).
//
// # Circuit Breaker
//
// Repeated connection or emission failures open a circuit: further emissions
// fail fast with ErrCircuitOpen until an exponential backoff expires, capped
// at the configured maximum. A successful operation resets the breaker.
//
// # Testing
//
// MemoryBus makes mediation tests hermetic and deterministic. For tests that
// must cross a real broker, TestBus starts a NATS container via
// testcontainers and hands back a connected NATSBus:
//
//	tb := eventbus.NewTestBus(t)
//	runScenario(t, tb.Bus)
//
// # Thread Safety
//
// Both implementations are safe for concurrent Subscribe, Emit, and
// unsubscribe calls.
package eventbus
