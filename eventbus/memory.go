package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/metric"
)

// MemoryBus is a synchronous in-process Bus. Emit delivers to subscribers
// on the calling goroutine, in subscription order, before returning. It is
// the default fabric for tests and for applications that run everything in
// one process.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySub
	nextID uint64
	closed bool

	logger  *slog.Logger
	metrics *metric.Metrics

	emitted   atomic.Uint64
	delivered atomic.Uint64
}

type memorySub struct {
	id      uint64
	handler Handler
}

var _ Bus = (*MemoryBus)(nil)

// MemoryOption configures a MemoryBus
type MemoryOption func(*MemoryBus)

// WithMemoryLogger sets a custom logger for the bus
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(b *MemoryBus) {
		if logger != nil {
			b.logger = logger.With("component", "MemoryBus")
		}
	}
}

// WithMemoryMetrics enables bus metrics collection using the provided registry
func WithMemoryMetrics(registry *metric.MetricsRegistry) MemoryOption {
	return func(b *MemoryBus) {
		if registry != nil {
			b.metrics = registry.CoreMetrics()
		}
	}
}

// NewMemoryBus creates an in-process bus ready for use
func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		subs:   make(map[string][]*memorySub),
		logger: slog.Default().With("component", "MemoryBus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an exact event name
func (b *MemoryBus) Subscribe(event string, handler Handler) (UnsubscribeFunc, error) {
	if err := ValidateEvent(event); err != nil {
		return nil, errors.WrapInvalid(err, "MemoryBus", "Subscribe", "validate event")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandler, "MemoryBus", "Subscribe", "validate handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBusClosed
	}

	b.nextID++
	sub := &memorySub{id: b.nextID, handler: handler}
	b.subs[event] = append(b.subs[event], sub)

	return b.unsubscribeFunc(event, sub.id), nil
}

// unsubscribeFunc builds the release function for one subscription.
// Calling it after the subscription is gone is a no-op.
func (b *MemoryBus) unsubscribeFunc(event string, id uint64) UnsubscribeFunc {
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[event]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[event] = append(subs[:i:i], subs[i+1:]...)
				if len(b.subs[event]) == 0 {
					delete(b.subs, event)
				}
				return nil
			}
		}
		return nil
	}
}

// Emit delivers the event to every current subscriber before returning.
// Handler errors and panics are logged and counted; they never interrupt
// delivery to the remaining subscribers.
func (b *MemoryBus) Emit(ctx context.Context, event string, payload any) error {
	if err := ValidateEvent(event); err != nil {
		return errors.WrapInvalid(err, "MemoryBus", "Emit", "validate event")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.ErrBusClosed
	}
	subs := make([]*memorySub, len(b.subs[event]))
	copy(subs, b.subs[event])
	b.mu.RUnlock()

	b.emitted.Add(1)
	if b.metrics != nil {
		b.metrics.RecordEventEmitted()
	}

	for _, sub := range subs {
		b.deliver(ctx, sub, event, payload)
	}

	return nil
}

// deliver runs one handler with panic isolation
func (b *MemoryBus) deliver(ctx context.Context, sub *memorySub, event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event,
				"panic", r)
			if b.metrics != nil {
				b.metrics.RecordError("MemoryBus", errors.ErrorFatal.String())
			}
		}
	}()

	err := sub.handler(ctx, event, payload)
	if err != nil {
		b.logger.Warn("event handler failed",
			"event", event,
			"error", err)
		if b.metrics != nil {
			b.metrics.RecordError("MemoryBus", errors.Classify(err).String())
		}
	}

	b.delivered.Add(1)
	if b.metrics != nil {
		b.metrics.RecordEventDelivered()
	}
}

// SubscriberCount reports how many handlers are subscribed to an event
func (b *MemoryBus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Emitted reports how many events have been emitted on this bus
func (b *MemoryBus) Emitted() uint64 {
	return b.emitted.Load()
}

// Delivered reports how many handler deliveries have completed
func (b *MemoryBus) Delivered() uint64 {
	return b.delivered.Load()
}

// Close rejects further subscriptions and emissions. Idempotent.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
