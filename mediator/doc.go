// Package mediator implements rule-driven message routing between UI
// components, so forms, modals, data panels and business-logic widgets
// coordinate without holding references to each other.
//
// # Overview
//
// Components register with the Mediator under an id and a Metadata record
// describing their kind, capabilities and data dependencies. Registration
// installs the default bus subscriptions for the kind; unregistration (and
// Close) releases every subscription exactly once. Components then
// communicate by sending messages through the mediator rather than calling
// each other:
//
//	m, err := mediator.New(bus)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	err = m.Register("contact-form", form, mediator.Metadata{Kind: mediator.KindForm})
//	err = m.Register("business-panel", panel, mediator.Metadata{Kind: mediator.KindBusiness})
//
//	err = m.Send(ctx, "contact-form", "business-panel", mediator.Message{
//	    "type":       "submit",
//	    "entityType": "contact",
//	    "formData":   map[string]any{"name": "Ada"},
//	})
//
// # Rules
//
// Every message passes through the ordered rule list. A Rule matches on the
// sender and target ids (Wildcard matches any) and an optional Condition over
// the message; each matching rule's Action runs in insertion order. Actions
// coordinate by emitting bus events, which is how decoupling is preserved:
// an action never calls a component directly.
//
// Five standing policies are installed at construction: form submissions
// aimed at business components trigger validation events, opening one modal
// closes another, service errors become notifications and form resets, data
// changes fan out refresh events to declared dependents, and workflow steps
// are forwarded as workflow events. They have stable policy ids and can be
// removed like any rule.
//
// Rules can also be loaded declaratively from JSON or YAML files via
// LoadRuleSet and AddRuleSet; see RuleDefinition.
//
// # Processing Model
//
// Messages are processed strictly one at a time, in enqueue order, across
// the whole mediator. The goroutine whose Send claims the idle queue drains
// it completely, processing its own message and any backlog other callers
// enqueued meanwhile; those callers block only until their own message is
// done. A rule action that sends again is detected and returns immediately
// after enqueueing, keeping the single drainer deadlock-free.
//
// Failures are contained at the narrowest possible scope. A panicking
// condition is a non-match; a failing or panicking action is logged and
// counted without affecting other rules, other messages, or the Send caller;
// a target component that vanished mid-flight degrades to a dropped message.
// Only registration validity errors surface to callers.
//
// # Observability
//
// Stats returns registration, rule and queue counts plus lifetime processing
// counters. WithMetrics wires Prometheus instruments for sends, broadcasts,
// rule action outcomes, forwarding outcomes and processing latency.
// EnableTracing emits per-hop TraceRecords on the trace event, rate limited,
// until the returned disposer is called.
package mediator
