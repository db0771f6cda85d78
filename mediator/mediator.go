package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/eventbus"
	"github.com/c360/uimediator/metric"
)

// Mediator routes messages between registered components through an ordered
// rule set. Components never reference each other directly; they send
// messages through the mediator and receive events over the bus.
//
// All methods are safe for concurrent use. Message processing is strictly
// serialized: one message at a time, in enqueue order, on the goroutine that
// claimed the drain.
type Mediator struct {
	bus    eventbus.Bus
	logger *slog.Logger

	// mu guards components, rules, queue and draining. Conditions, actions
	// and component notifications always run with mu released.
	mu         sync.RWMutex
	components map[string]*registration
	rules      []Rule
	queue      []*queuedMessage
	draining   bool

	actionTimeout time.Duration

	metrics *mediatorMetrics
	core    *metric.Metrics

	startTime          time.Time
	messagesProcessed  atomic.Uint64
	ruleActionFailures atomic.Uint64

	traceEnabled atomic.Bool
	traceLimiter *rate.Limiter

	closing chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool
}

// Option configures a Mediator during construction.
type Option func(*Mediator) error

// WithLogger sets the logger used for mediator activity. A nil logger keeps
// the default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mediator) error {
		if logger != nil {
			m.logger = logger.With("component", "mediator")
		}
		return nil
	}
}

// WithMetrics wires the mediator into a metrics registry. Without this
// option no metrics are recorded.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Mediator) error {
		if registry == nil {
			return nil
		}
		mm, err := newMediatorMetrics(registry)
		if err != nil {
			return err
		}
		m.metrics = mm
		m.core = registry.CoreMetrics()
		return nil
	}
}

// WithActionTimeout bounds each rule action's execution context. Zero (the
// default) means actions inherit the processing context unbounded.
func WithActionTimeout(d time.Duration) Option {
	return func(m *Mediator) error {
		if d <= 0 {
			return fmt.Errorf("action timeout must be positive, got %v", d)
		}
		m.actionTimeout = d
		return nil
	}
}

// New creates a Mediator bound to the given bus and installs the default
// policy rules. The bus is required; everything else is optional.
func New(bus eventbus.Bus, opts ...Option) (*Mediator, error) {
	if bus == nil {
		return nil, errors.ErrBusRequired
	}

	m := &Mediator{
		bus:          bus,
		logger:       slog.Default().With("component", "mediator"),
		components:   make(map[string]*registration),
		startTime:    time.Now(),
		traceLimiter: rate.NewLimiter(traceRate, traceBurst),
		closing:      make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "Mediator", "New", "apply option")
		}
	}

	if err := m.installDefaultPolicies(); err != nil {
		return nil, errors.Wrap(err, "Mediator", "New", "install default policies")
	}

	m.logger.Info("mediator initialized", "rules", len(m.rules))
	return m, nil
}

// Send routes a message from one registered component to another. The call
// returns once the message has been processed through the rule set, in FIFO
// order with every other message. Rule action failures are isolated and
// logged; they do not fail the Send.
//
// Cancelling ctx abandons the wait, not the message: an enqueued message is
// still processed by the active drain.
func (m *Mediator) Send(ctx context.Context, from, to string, msg Message) error {
	if m.closed.Load() {
		return errors.ErrMediatorClosed
	}

	qm := newQueuedMessage(from, to, msg)

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return errors.ErrMediatorClosed
	}
	if _, ok := m.components[from]; !ok {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrComponentNotRegistered, "Mediator", "Send", "validate sender "+from)
	}
	if _, ok := m.components[to]; !ok {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrComponentNotRegistered, "Mediator", "Send", "validate target "+to)
	}
	m.queue = append(m.queue, qm)
	depth := len(m.queue)
	claimed := !m.draining
	if claimed {
		m.draining = true
	}
	m.mu.Unlock()

	if m.core != nil {
		m.core.RecordMessageEnqueued()
		m.core.SetQueueDepth(depth)
	}
	if m.metrics != nil {
		m.metrics.messagesSent.Inc()
	}
	m.traceHop(ctx, "send", qm.id, from, to, 0)

	if claimed {
		m.drain()
		return nil
	}
	if isDrainCtx(ctx) {
		// Re-entrant send from a rule action. The active drain will consume
		// this message; waiting here would block the only drainer.
		return nil
	}

	select {
	case <-qm.done:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Mediator", "Send", "wait for processing")
	case <-m.closing:
		return errors.ErrMediatorClosed
	}
}

// Broadcast sends a message from one component to every other registered
// component. Deliveries run concurrently and settle independently: a failing
// target is logged and skipped, never surfaced to the caller.
func (m *Mediator) Broadcast(ctx context.Context, from string, msg Message) error {
	if m.closed.Load() {
		return errors.ErrMediatorClosed
	}

	m.mu.RLock()
	if _, ok := m.components[from]; !ok {
		m.mu.RUnlock()
		return errors.WrapInvalid(errors.ErrComponentNotRegistered, "Mediator", "Broadcast", "validate sender "+from)
	}
	targets := make([]string, 0, len(m.components))
	for id := range m.components {
		if id != from {
			targets = append(targets, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(targets)

	if m.metrics != nil {
		m.metrics.broadcastsTotal.Inc()
	}
	m.traceHop(ctx, "broadcast", "", from, Wildcard, len(targets))

	if len(targets) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, target := range targets {
		target := target // per-iteration copy: go.mod pins go 1.21, which has pre-1.22 loopvar scoping
		g.Go(func() error {
			if err := m.Send(ctx, from, target, msg); err != nil {
				m.logger.Warn("broadcast delivery failed",
					"from", from,
					"to", target,
					"error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stats reports a point-in-time snapshot of mediator state.
type Stats struct {
	ComponentsRegistered int
	RulesActive          int
	MessageQueueLength   int
	ComponentKinds       map[string]int
	MessagesProcessed    uint64
	RuleActionFailures   uint64
	Uptime               time.Duration
}

// Stats returns current registration, rule and queue counts together with
// lifetime processing counters.
func (m *Mediator) Stats() Stats {
	m.mu.RLock()
	kinds := make(map[string]int)
	for _, reg := range m.components {
		kinds[reg.metadata.Kind.String()]++
	}
	s := Stats{
		ComponentsRegistered: len(m.components),
		RulesActive:          len(m.rules),
		MessageQueueLength:   len(m.queue),
		ComponentKinds:       kinds,
	}
	m.mu.RUnlock()

	s.MessagesProcessed = m.messagesProcessed.Load()
	s.RuleActionFailures = m.ruleActionFailures.Load()
	s.Uptime = time.Since(m.startTime)
	return s
}

// Close releases every component registration, clears the rule set and
// rejects further operations. Senders blocked in Send are released with
// ErrMediatorClosed. Close is idempotent.
func (m *Mediator) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return nil
	}
	m.closed.Store(true)
	close(m.closing)

	m.mu.Lock()
	regs := make([]*registration, 0, len(m.components))
	for _, reg := range m.components {
		regs = append(regs, reg)
	}
	m.components = make(map[string]*registration)
	m.rules = nil
	m.queue = nil
	m.mu.Unlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].id < regs[j].id })

	var cleanupErrs []string
	for _, reg := range regs {
		for _, err := range reg.release() {
			cleanupErrs = append(cleanupErrs, fmt.Sprintf("release %s: %v", reg.id, err))
		}
	}

	m.recordComponentCounts()
	if m.core != nil {
		m.core.SetRulesActive(0)
		m.core.SetQueueDepth(0)
	}

	m.logger.Info("mediator closed",
		"components_released", len(regs),
		"messages_processed", m.messagesProcessed.Load())

	if len(cleanupErrs) > 0 {
		return fmt.Errorf("cleanup errors: %s", strings.Join(cleanupErrs, "; "))
	}
	return nil
}
