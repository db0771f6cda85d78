package eventbus

import (
	"context"
	"strings"

	"github.com/c360/uimediator/errors"
)

// Handler processes one delivered event. Handlers run synchronously on the
// delivering goroutine; a returned error is logged and counted by the bus but
// never stops delivery to other subscribers.
type Handler func(ctx context.Context, event string, payload any) error

// UnsubscribeFunc releases a subscription. Safe to call more than once;
// calls after the first are no-ops.
type UnsubscribeFunc func() error

// Bus is the minimal pub/sub surface the mediator requires. Implementations
// must deliver each emitted event to every current subscriber of that exact
// event name and must isolate subscriber failures from one another.
type Bus interface {
	// Subscribe registers a handler for an event name and returns a function
	// that releases the subscription.
	Subscribe(event string, handler Handler) (UnsubscribeFunc, error)

	// Emit publishes an event to all current subscribers.
	Emit(ctx context.Context, event string, payload any) error
}

// Well-known event names shared between components, the mediator's standing
// rules, and embedding applications. Names are colon-separated, most specific
// segment last.
const (
	EventDealCreated        = "deal:created"
	EventDealUpdated        = "deal:updated"
	EventContactSelected    = "contact:selected"
	EventActivityCreated    = "activity:created"
	EventDataRefreshAll     = "data:refresh:all"
	EventValidationRequired = "business:validation-required"
	EventWorkflowStep       = "business:workflow-step"
	EventNotification       = "ui:notification"
	EventUIRefresh          = "ui:refresh"
	EventTrace              = "mediator:trace"
)

// EventFormValidated names the validation-passed event for one form.
func EventFormValidated(id string) string { return "form:validated:" + id }

// EventFormReset names the reset event for one form.
func EventFormReset(id string) string { return "form:reset:" + id }

// EventModalOpened names the opened event for one modal.
func EventModalOpened(id string) string { return "modal:opened:" + id }

// EventModalClosed names the close-request event for one modal.
func EventModalClosed(id string) string { return "modal:closed:" + id }

// EventDataRefresh names the refresh event for one data view.
func EventDataRefresh(id string) string { return "data:refresh:" + id }

// Scope returns the part of an id-scoped event name before the last colon,
// or the whole name when it has no colon.
func Scope(event string) string {
	if i := strings.LastIndex(event, ":"); i >= 0 {
		return event[:i]
	}
	return event
}

// ScopeID returns the id segment of an id-scoped event name, the part
// after the last colon. Names without a colon have no id segment.
func ScopeID(event string) string {
	if i := strings.LastIndex(event, ":"); i >= 0 {
		return event[i+1:]
	}
	return ""
}

// ValidateEvent rejects event names the bus implementations cannot route.
// Spaces and the NATS wildcard characters are reserved.
func ValidateEvent(event string) error {
	if event == "" {
		return errors.ErrEmptyEvent
	}
	if strings.ContainsAny(event, " \t\n*>") {
		return errors.ErrInvalidEvent
	}
	return nil
}
