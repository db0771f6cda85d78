package testutil

import (
	"context"
	"sync"

	"github.com/c360/uimediator/eventbus"
)

// Emission is one event observed by a RecordingBus.
type Emission struct {
	Event   string
	Payload any
}

// RecordingBus is an in-memory Bus that records every emission before
// delivering it, so tests can assert on exactly which events a mediation
// flow produced. Failures can be injected per event name.
// Thread-safe for concurrent use from multiple goroutines.
type RecordingBus struct {
	inner *eventbus.MemoryBus

	mu         sync.Mutex
	emissions  []Emission
	failEvents map[string]error
}

var _ eventbus.Bus = (*RecordingBus)(nil)

// NewRecordingBus creates a recording bus backed by a fresh memory bus.
func NewRecordingBus() *RecordingBus {
	return &RecordingBus{
		inner:      eventbus.NewMemoryBus(),
		failEvents: make(map[string]error),
	}
}

// Subscribe delegates to the backing memory bus.
func (b *RecordingBus) Subscribe(event string, h eventbus.Handler) (eventbus.UnsubscribeFunc, error) {
	return b.inner.Subscribe(event, h)
}

// Emit records the emission attempt, returns any injected failure for the
// event, and otherwise delivers through the backing bus.
func (b *RecordingBus) Emit(ctx context.Context, event string, payload any) error {
	b.mu.Lock()
	b.emissions = append(b.emissions, Emission{Event: event, Payload: payload})
	injected := b.failEvents[event]
	b.mu.Unlock()

	if injected != nil {
		return injected
	}
	return b.inner.Emit(ctx, event, payload)
}

// FailWith makes every future emission of the event fail with err, without
// delivering. Pass a nil error to clear the injection.
func (b *RecordingBus) FailWith(event string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failEvents, event)
		return
	}
	b.failEvents[event] = err
}

// Emissions returns a copy of every recorded emission, in order.
func (b *RecordingBus) Emissions() []Emission {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]Emission, len(b.emissions))
	copy(result, b.emissions)
	return result
}

// EmissionsOf returns the recorded emissions for one event, in order.
func (b *RecordingBus) EmissionsOf(event string) []Emission {
	b.mu.Lock()
	defer b.mu.Unlock()

	var result []Emission
	for _, e := range b.emissions {
		if e.Event == event {
			result = append(result, e)
		}
	}
	return result
}

// Events returns the recorded event names, in emission order.
func (b *RecordingBus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]string, len(b.emissions))
	for i, e := range b.emissions {
		result[i] = e.Event
	}
	return result
}

// Clear forgets recorded emissions and injected failures.
func (b *RecordingBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.emissions = nil
	b.failEvents = make(map[string]error)
}

// Close closes the backing memory bus.
func (b *RecordingBus) Close() error {
	return b.inner.Close()
}
