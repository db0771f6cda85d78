package mediator

import (
	"context"
	"sort"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/eventbus"
)

// Notifiable is the capability contract a component must implement to
// participate in mediated messaging. Notify receives events the mediator or
// registry routes to the component; Subscribe lets the component install its
// own additional bus subscriptions.
type Notifiable interface {
	Notify(ctx context.Context, event string, data any) error
	Subscribe(event string, h eventbus.Handler) (eventbus.UnsubscribeFunc, error)
}

// registration tracks one mediated component together with the bus
// subscriptions installed on its behalf. Each unsubscribe entry is invoked
// exactly once, when the registration is released.
type registration struct {
	id           string
	component    Notifiable
	metadata     Metadata
	unsubscribes []eventbus.UnsubscribeFunc
	released     bool
}

// release runs every stored unsubscribe once and returns the errors raised.
// Safe to call more than once.
func (reg *registration) release() []error {
	if reg.released {
		return nil
	}
	reg.released = true

	var errs []error
	for _, unsub := range reg.unsubscribes {
		if err := unsub(); err != nil {
			errs = append(errs, err)
		}
	}
	reg.unsubscribes = nil
	return errs
}

// Register adds a component under the given id and installs the default bus
// subscriptions its metadata kind calls for. Registering an id that already
// exists replaces it and releases the prior registration's subscriptions, so
// the last registration wins without leaking listeners. If installing the new
// subscriptions fails, the prior registration is left untouched.
func (m *Mediator) Register(id string, component Notifiable, metadata Metadata) error {
	if m.closed.Load() {
		return errors.ErrMediatorClosed
	}
	if id == "" {
		return errors.WrapInvalid(errors.ErrEmptyComponentID, "Mediator", "Register", "validate id")
	}
	if component == nil {
		return errors.WrapInvalid(errors.ErrNilComponent, "Mediator", "Register", "validate component")
	}

	unsubscribes, err := m.installSubscriptions(id, component, metadata)
	if err != nil {
		return errors.Wrap(err, "Mediator", "Register", "install subscriptions")
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		m.releaseSubscriptions(id, unsubscribes)
		return errors.ErrMediatorClosed
	}
	prior := m.components[id]
	m.components[id] = &registration{
		id:           id,
		component:    component,
		metadata:     metadata,
		unsubscribes: unsubscribes,
	}
	m.mu.Unlock()

	if prior != nil {
		for _, err := range prior.release() {
			m.logger.Warn("failed to release replaced registration",
				"id", id,
				"error", err)
		}
	}

	m.recordComponentCounts()
	m.logger.Info("component registered",
		"id", id,
		"kind", metadata.Kind.String(),
		"subscriptions", len(unsubscribes))

	return nil
}

// Unregister releases the component's subscriptions and removes it. Unknown
// ids are a no-op, as is calling after Close.
func (m *Mediator) Unregister(id string) {
	if id == "" || m.closed.Load() {
		return
	}

	m.mu.Lock()
	reg, ok := m.components[id]
	if ok {
		delete(m.components, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	for _, err := range reg.release() {
		m.logger.Warn("failed to release subscription",
			"id", id,
			"error", err)
	}

	m.recordComponentCounts()
	m.logger.Info("component unregistered", "id", id)
}

// Components returns the registered component ids, sorted.
func (m *Mediator) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ComponentMetadata returns the metadata a component registered with. The
// second return reports whether the id is registered.
func (m *Mediator) ComponentMetadata(id string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.components[id]
	if !ok {
		return Metadata{}, false
	}
	return reg.metadata, true
}

// componentKind looks up the registered kind for an id
func (m *Mediator) componentKind(id string) (Kind, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.components[id]
	if !ok {
		return KindGeneric, false
	}
	return reg.metadata.Kind, true
}

// dependentsOf returns the ids of every registered component whose metadata
// lists the entity as a dependency, sorted for stable fan-out order.
func (m *Mediator) dependentsOf(entity string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, reg := range m.components {
		if reg.metadata.DependsOn(entity) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// installSubscriptions wires the default subscriptions for a component kind.
// A failure part way through releases the subscriptions already installed.
func (m *Mediator) installSubscriptions(id string, component Notifiable, metadata Metadata) ([]eventbus.UnsubscribeFunc, error) {
	var events []string
	switch metadata.Kind {
	case KindForm:
		events = []string{
			eventbus.EventFormValidated(id),
			eventbus.EventFormReset(id),
		}
	case KindModal:
		events = []string{
			eventbus.EventModalOpened(id),
			eventbus.EventModalClosed(id),
		}
	case KindBusiness:
		events = []string{
			eventbus.EventDealCreated,
			eventbus.EventDealUpdated,
			eventbus.EventContactSelected,
			eventbus.EventActivityCreated,
		}
	case KindData:
		events = []string{
			eventbus.EventDataRefresh(id),
			eventbus.EventDataRefreshAll,
		}
	default:
		return nil, nil
	}

	forward := func(ctx context.Context, event string, payload any) error {
		return component.Notify(ctx, event, payload)
	}

	unsubscribes := make([]eventbus.UnsubscribeFunc, 0, len(events))
	for _, event := range events {
		unsub, err := m.bus.Subscribe(event, forward)
		if err != nil {
			m.releaseSubscriptions(id, unsubscribes)
			return nil, errors.Wrap(err, "Mediator", "installSubscriptions", "subscribe "+event)
		}
		unsubscribes = append(unsubscribes, unsub)
	}

	return unsubscribes, nil
}

// releaseSubscriptions undoes partially or freshly installed subscriptions on
// a failed or late registration.
func (m *Mediator) releaseSubscriptions(id string, unsubscribes []eventbus.UnsubscribeFunc) {
	for _, undo := range unsubscribes {
		if err := undo(); err != nil {
			m.logger.Warn("failed to roll back subscription",
				"id", id,
				"error", err)
		}
	}
}

// recordComponentCounts refreshes the per-kind registration gauges
func (m *Mediator) recordComponentCounts() {
	if m.core == nil {
		return
	}

	counts := make(map[Kind]int)
	m.mu.RLock()
	for _, reg := range m.components {
		counts[reg.metadata.Kind]++
	}
	m.mu.RUnlock()

	for _, kind := range []Kind{KindGeneric, KindForm, KindModal, KindBusiness, KindData} {
		m.core.SetComponentCount(kind.String(), counts[kind])
	}
}
