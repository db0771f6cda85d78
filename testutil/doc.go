// Package testutil provides testing utilities for UIMediator mediation
// tests.
//
// # Overview
//
// The package contains test doubles and message fixtures for exercising
// component coordination end to end without a UI layer or a broker. Nothing
// here is imported by production code.
//
// # Test Doubles
//
// RecordingBus - in-memory Bus that records every emission:
//   - Thread-safe for concurrent use
//   - Real synchronous delivery through a backing MemoryBus
//   - Per-event failure injection via FailWith
//   - Emissions/EmissionsOf/Events accessors for assertions
//
// MockComponent - registrable component double:
//   - Satisfies the mediator's Notifiable contract
//   - Records every notification in arrival order
//   - Pluggable NotifyFunc for error and panic injection
//   - Optional backing bus for the component's own subscriptions
//
// # Fixtures
//
// Message builders cover the flows the default policies react to: form
// submissions, modal opens, service errors, data changes and workflow steps,
// plus event-shaped messages for default forwarding. RuleSetJSON and
// RuleSetYAML are matching declarative rule files for loader tests.
//
// # Usage
//
//	bus := testutil.NewRecordingBus()
//	m, err := mediator.New(bus)
//	require.NoError(t, err)
//
//	form := testutil.NewMockComponent()
//	panel := testutil.NewMockComponent()
//	require.NoError(t, m.Register("contact-form", form, mediator.Metadata{Kind: mediator.KindForm}))
//	require.NoError(t, m.Register("business-panel", panel, mediator.Metadata{Kind: mediator.KindBusiness}))
//
//	err = m.Send(ctx, "contact-form", "business-panel",
//	    mediator.Message(testutil.SubmitMessage("contact", map[string]any{"name": "Ada"})))
//
//	emissions := bus.EmissionsOf(eventbus.EventValidationRequired)
package testutil
