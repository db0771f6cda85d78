// Package errors provides standardized error handling patterns for UIMediator components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// in-process message mediation: Transient (temporary, may succeed if repeated),
// Invalid (bad input, never worth repeating), and Fatal (unrecoverable, stop
// processing).
//
// Classification lets callers decide how to react to a failed send, a bad rule
// definition, or a lost bus connection without string-matching error text. The
// system integrates with Go's standard error handling, supporting errors.Is(),
// errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if _, ok := reg.lookup(id); !ok {
//	    return errors.ErrComponentNotRegistered
//	}
//
// Wrap errors with context for debugging:
//
//	if err := bus.Emit(ctx, event, payload); err != nil {
//	    return errors.WrapTransient(err, "Mediator", "Broadcast", "emit event")
//	}
//
// Check classification at the call site:
//
//	if err := med.Send(ctx, "contactForm", "dealService", msg); err != nil {
//	    if errors.IsInvalid(err) {
//	        // caller bug, surface it
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the library.
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() adds context without changing the original classification.
//
// # Standard Error Variables
//
// Pre-defined error variables cover the library's common conditions, organized
// by category:
//
//   - Mediator lifecycle: ErrMediatorClosed, ErrBusRequired
//   - Registration and routing: ErrComponentNotRegistered, ErrEmptyComponentID, ErrNilComponent
//   - Rule engine: ErrRuleExists, ErrRuleNotFound, ErrInvalidRule, ErrActionPanic
//   - Event bus: ErrNotConnected, ErrBusClosed, ErrCircuitOpen, ErrSubscriptionFailed,
//     ErrEmptyEvent, ErrInvalidEvent, ErrNilHandler
//   - Payloads and definitions: ErrInvalidPayload, ErrParsingFailed
//
// Note that ErrComponentNotRegistered is classified Invalid: the mediator never
// retries a send to an unknown component, the caller must register it first.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("component: %s, class: %s", ce.Component, ce.Class)
//	}
//
//	if errors.Is(err, errors.ErrMediatorClosed) {
//	    // mediator was shut down, stop issuing sends
//	}
//
// Classification is preserved through error chains:
//
//	wrapped := errors.WrapInvalid(errors.ErrRuleNotFound, "Mediator", "RemoveRule", "lookup")
//	errors.IsInvalid(wrapped) // true
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
//
// # Architecture Integration
//
//   - mediator: wraps routing, queueing and rule failures with component context
//   - eventbus: uses the connection and subscription error variables
//   - rule definitions: parsing and validation return Invalid-class errors
package errors
