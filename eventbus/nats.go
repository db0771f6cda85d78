package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// BusStatus holds runtime status information for the NATS bus
type BusStatus struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Reconnects      int32
	RTT             time.Duration
}

// envelope is the wire form of one event. The exact event name travels in
// the envelope, so the subject mapping never needs reversing.
type envelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NATSBus is a Bus backed by a NATS connection, with circuit breaker
// protection on emissions and automatic reconnection handling.
//
// Payloads cross the wire as JSON, so subscribers on a NATSBus observe
// map[string]any payloads regardless of the concrete type emitted.
type NATSBus struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger

	// NATS connection
	conn      *nats.Conn
	subs      map[uint64]*nats.Subscription
	nextSubID uint64

	// Circuit breaker
	lastFailure      atomic.Value // stores time.Time
	backoff          atomic.Value // stores time.Duration
	circuitFailures  atomic.Int32 // failures in current circuit round
	circuitThreshold int32        // failures before opening circuit
	maxBackoff       time.Duration

	// Connection options
	maxReconnects   int
	reconnectWait   time.Duration
	pingInterval    time.Duration
	timeout         time.Duration
	drainTimeout    time.Duration
	deliveryTimeout time.Duration
	subjectPrefix   string

	// Authentication - sensitive fields cleared on close
	username string
	password string
	token    string

	// TLS
	tlsEnabled  bool
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string

	// Client identification
	clientName  string
	compression bool

	// Metrics
	metrics    *metric.Metrics
	reconnects atomic.Int32

	// Callbacks
	onDisconnect   func(error)
	onReconnect    func()
	onHealthChange func(bool)

	// Health monitoring
	healthTicker   *time.Ticker
	healthInterval time.Duration
	healthDone     chan struct{}

	// Synchronization
	mu      sync.RWMutex
	closeMu sync.Mutex  // Ensures Close() is called only once
	closed  atomic.Bool // Track if bus is closed
}

var _ Bus = (*NATSBus)(nil)

// NewNATSBus creates a new NATS-backed bus with optional configuration.
// The bus starts disconnected; call Connect before use.
func NewNATSBus(url string, opts ...BusOption) (*NATSBus, error) {
	b := &NATSBus{
		url:    url,
		logger: slog.Default().With("component", "NATSBus"),
		subs:   make(map[uint64]*nats.Subscription),
		// Sensible defaults
		maxReconnects:    -1, // infinite by default
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		healthInterval:   10 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		deliveryTimeout:  30 * time.Second,
		subjectPrefix:    "ui.events",
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, errors.WrapInvalid(err, "NATSBus", "NewNATSBus", "apply option")
		}
	}

	b.status.Store(StatusDisconnected)
	b.backoff.Store(time.Second)
	b.lastFailure.Store(time.Time{})

	b.logger.Debug("created NATS bus", "url", url, "prefix", b.subjectPrefix)

	return b, nil
}

// URL returns the NATS server URL
func (b *NATSBus) URL() string {
	return b.url
}

// Status returns the current connection status
func (b *NATSBus) Status() ConnectionStatus {
	val := b.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// setStatus updates the connection status
func (b *NATSBus) setStatus(status ConnectionStatus) {
	b.status.Store(status)
}

// IsHealthy returns true if the connection is healthy
func (b *NATSBus) IsHealthy() bool {
	return b.Status() == StatusConnected
}

// Failures returns the current failure count
func (b *NATSBus) Failures() int32 {
	return b.failures.Load()
}

// Backoff returns the current backoff duration
func (b *NATSBus) Backoff() time.Duration {
	return b.backoff.Load().(time.Duration)
}

// subjectFor maps an event name onto a NATS subject under the configured
// prefix. Colons become subject token separators.
func (b *NATSBus) subjectFor(event string) string {
	return b.subjectPrefix + "." + strings.ReplaceAll(event, ":", ".")
}

// recordFailure records a connection failure and manages the circuit breaker
func (b *NATSBus) recordFailure() {
	totalFailures := b.failures.Add(1)
	b.lastFailure.Store(time.Now())

	circuitFailures := b.circuitFailures.Add(1)

	b.logger.Debug("recorded failure",
		"total", totalFailures,
		"circuit_failures", circuitFailures)

	if circuitFailures < b.circuitThreshold {
		return
	}

	currentStatus := b.Status()
	if currentStatus != StatusCircuitOpen {
		// Try to transition to open state (only one goroutine will succeed)
		if b.status.CompareAndSwap(currentStatus, StatusCircuitOpen) {
			currentBackoff := b.backoff.Load().(time.Duration)
			newBackoff := currentBackoff * 2
			if newBackoff > b.maxBackoff {
				newBackoff = b.maxBackoff
			}
			b.backoff.Store(newBackoff)

			b.logger.Warn("circuit breaker opened",
				"failures", circuitFailures,
				"backoff", currentBackoff)

			b.circuitFailures.Store(0)

			// Schedule circuit test after backoff
			time.AfterFunc(currentBackoff, b.testCircuit)
		}
	} else {
		// Circuit already open, failures continue: stretch the backoff
		currentBackoff := b.backoff.Load().(time.Duration)
		newBackoff := currentBackoff * 2
		if newBackoff > b.maxBackoff {
			newBackoff = b.maxBackoff
		}
		b.backoff.Store(newBackoff)

		b.logger.Warn("circuit breaker still open", "backoff", newBackoff)

		b.circuitFailures.Store(0)
	}
}

// resetCircuit resets the circuit breaker state
func (b *NATSBus) resetCircuit() {
	b.failures.Store(0)
	b.circuitFailures.Store(0)
	b.backoff.Store(time.Second)
	b.lastFailure.Store(time.Time{})

	// Don't change status if we're connected
	if b.Status() == StatusCircuitOpen {
		b.setStatus(StatusDisconnected)
	}
}

// testCircuit attempts to close the circuit breaker after backoff expires
func (b *NATSBus) testCircuit() {
	if b.Status() == StatusCircuitOpen {
		b.logger.Debug("circuit breaker test, moving from open to disconnected")
		b.setStatus(StatusDisconnected)
	}
}

// WaitForConnection waits for the connection to be established
func (b *NATSBus) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
			if b.IsHealthy() {
				return nil
			}
		}
	}
}

// buildConnectionOptions builds NATS connection options from bus configuration
func (b *NATSBus) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(b.maxReconnects),
		nats.ReconnectWait(b.reconnectWait),
		nats.PingInterval(b.pingInterval),
		nats.Timeout(b.timeout),
		nats.DrainTimeout(b.drainTimeout),
		nats.DisconnectErrHandler(b.handleDisconnect),
		nats.ReconnectHandler(b.handleReconnect),
		nats.ClosedHandler(b.handleClosed),
		nats.ErrorHandler(b.handleError),
	}

	// Add authentication if configured
	if b.username != "" && b.password != "" {
		opts = append(opts, nats.UserInfo(b.username, b.password))
	}
	if b.token != "" {
		opts = append(opts, nats.Token(b.token))
	}

	// Add TLS if configured
	if b.tlsEnabled {
		if b.tlsCertFile != "" && b.tlsKeyFile != "" {
			opts = append(opts, nats.ClientCert(b.tlsCertFile, b.tlsKeyFile))
		}
		if b.tlsCAFile != "" {
			opts = append(opts, nats.RootCAs(b.tlsCAFile))
		}
	}

	if b.clientName != "" {
		opts = append(opts, nats.Name(b.clientName))
	}

	if b.compression {
		opts = append(opts, nats.Compression(true))
	}

	return opts
}

// GetStatus returns current status information
func (b *NATSBus) GetStatus() *BusStatus {
	lastFailure := b.lastFailure.Load().(time.Time)

	status := &BusStatus{
		Status:          b.Status(),
		FailureCount:    b.failures.Load(),
		LastFailureTime: lastFailure,
		Reconnects:      b.reconnects.Load(),
	}

	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	// Add RTT if connected
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			status.RTT = rtt
		}
	}

	return status
}

// Connect establishes the connection to the NATS server
func (b *NATSBus) Connect(ctx context.Context) error {
	// Check circuit breaker first
	if b.Status() == StatusCircuitOpen {
		b.logger.Debug("circuit breaker is open, skipping connection attempt")
		return errors.ErrCircuitOpen
	}

	b.setStatus(StatusConnecting)
	b.logger.Info("connecting to NATS", "url", b.url)

	opts := b.buildConnectionOptions()

	// Attempt connection with context timeout
	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(b.url, opts...)
		if err != nil {
			connectDone <- err
			return
		}

		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			b.recordFailure()

			if b.Status() != StatusCircuitOpen {
				b.setStatus(StatusDisconnected)
			}
			if b.Status() == StatusCircuitOpen {
				return errors.ErrCircuitOpen
			}

			return errors.WrapTransient(err, "NATSBus", "Connect", "establish connection")
		}
	case <-ctx.Done():
		b.recordFailure()
		if b.Status() != StatusCircuitOpen {
			b.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(ctx.Err(), "NATSBus", "Connect", "connection cancelled")
	}

	b.setStatus(StatusConnected)
	b.resetCircuit()

	if b.metrics != nil {
		b.metrics.RecordBusStatus(true)
	}

	b.logger.Info("connected to NATS", "url", b.url)

	// Start health monitoring if configured
	if b.healthInterval > 0 {
		b.startHealthMonitoring()
	}

	if b.onHealthChange != nil {
		b.onHealthChange(true)
	}

	return nil
}

// Subscribe registers a handler for an event name. The subscription delivers
// each event on a NATS callback goroutine with a context bounded by the
// configured delivery timeout.
func (b *NATSBus) Subscribe(event string, handler Handler) (UnsubscribeFunc, error) {
	if err := ValidateEvent(event); err != nil {
		return nil, errors.WrapInvalid(err, "NATSBus", "Subscribe", "validate event")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandler, "NATSBus", "Subscribe", "validate handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return nil, errors.ErrBusClosed
	}
	if b.conn == nil || !b.conn.IsConnected() {
		return nil, errors.ErrNotConnected
	}

	sub, err := b.conn.Subscribe(b.subjectFor(event), func(msg *nats.Msg) {
		b.dispatch(event, handler, msg.Data)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSBus", "Subscribe", "subscribe subject")
	}

	b.nextSubID++
	id := b.nextSubID
	b.subs[id] = sub

	return b.unsubscribeFunc(id), nil
}

// unsubscribeFunc builds the release function for one subscription.
// Calling it after the subscription is gone is a no-op.
func (b *NATSBus) unsubscribeFunc(id uint64) UnsubscribeFunc {
	return func() error {
		b.mu.Lock()
		sub, ok := b.subs[id]
		if ok {
			delete(b.subs, id)
		}
		b.mu.Unlock()

		if !ok {
			return nil
		}
		if err := sub.Unsubscribe(); err != nil {
			return errors.Wrap(err, "NATSBus", "Unsubscribe", "release subscription")
		}
		return nil
	}
}

// dispatch decodes one delivery and runs the handler with panic isolation
func (b *NATSBus) dispatch(event string, handler Handler, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), b.deliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event,
				"panic", r)
			if b.metrics != nil {
				b.metrics.RecordError("NATSBus", errors.ErrorFatal.String())
			}
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("dropping undecodable event",
			"event", event,
			"error", err)
		if b.metrics != nil {
			b.metrics.RecordError("NATSBus", errors.ErrorInvalid.String())
		}
		return
	}
	if env.Event == "" {
		env.Event = event
	}

	if err := handler(ctx, env.Event, env.Payload); err != nil {
		b.logger.Warn("event handler failed",
			"event", env.Event,
			"error", err)
		if b.metrics != nil {
			b.metrics.RecordError("NATSBus", errors.Classify(err).String())
		}
	}

	if b.metrics != nil {
		b.metrics.RecordEventDelivered()
	}
}

// Emit publishes an event to all current subscribers
func (b *NATSBus) Emit(_ context.Context, event string, payload any) error {
	if err := ValidateEvent(event); err != nil {
		return errors.WrapInvalid(err, "NATSBus", "Emit", "validate event")
	}

	// Check circuit breaker first
	if b.Status() == StatusCircuitOpen {
		return errors.ErrCircuitOpen
	}

	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.ErrNotConnected
	}

	data, err := json.Marshal(envelope{
		Event:     event,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.WrapInvalid(err, "NATSBus", "Emit", "encode envelope")
	}

	if err := conn.Publish(b.subjectFor(event), data); err != nil {
		b.recordFailure()
		return errors.WrapTransient(err, "NATSBus", "Emit", "publish event")
	}

	b.resetCircuit()
	if b.metrics != nil {
		b.metrics.RecordEventEmitted()
	}
	return nil
}

// RTT returns the round-trip time to the NATS server
func (b *NATSBus) RTT() (time.Duration, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, errors.ErrNotConnected
	}

	return conn.RTT()
}

// Close drains and closes the NATS connection. Safe to call more than once.
func (b *NATSBus) Close(ctx context.Context) error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if b.closed.Load() {
		return nil // Already closed
	}
	b.closed.Store(true)

	// Stop health monitoring first (before acquiring main mutex to avoid deadlock)
	b.stopHealthMonitoring()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Collect all errors during cleanup
	var errs []error

	// Unsubscribe all with error tracking
	for id, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "NATSBus", "Close", "unsubscribe"))
			b.logger.Error("failed to unsubscribe", "id", id, "error", err)
		}
	}
	b.subs = make(map[uint64]*nats.Subscription)

	// Close connection with drain timeout from context or default
	if b.conn != nil {
		drainTimeout := b.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drainDone := make(chan error, 1)
		go func() {
			drainDone <- b.conn.Drain()
		}()

		var drainErr error
		select {
		case err := <-drainDone:
			if err != nil {
				drainErr = errors.Wrap(err, "NATSBus", "Close", "drain connection")
				b.logger.Error("drain error", "error", err)
			}
		case <-time.After(drainTimeout):
			drainErr = errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout),
				"NATSBus", "Close", "drain timeout")
			b.logger.Error("drain timeout, force closing", "timeout", drainTimeout)
		case <-ctx.Done():
			drainErr = errors.Wrap(ctx.Err(), "NATSBus", "Close", "context cancelled during drain")
			b.logger.Error("context cancelled during drain, force closing")
		}

		if drainErr != nil {
			errs = append(errs, drainErr)
		}

		b.conn.Close()
		b.conn = nil
	}

	// Clear sensitive credentials from memory
	b.username = ""
	b.password = ""
	b.token = ""

	b.setStatus(StatusDisconnected)
	if b.metrics != nil {
		b.metrics.RecordBusStatus(false)
	}

	if len(errs) > 0 {
		errMsg := "cleanup errors:"
		for i, err := range errs {
			errMsg += fmt.Sprintf("\n  [%d] %v", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

// Event handlers for NATS connection
func (b *NATSBus) handleDisconnect(_ *nats.Conn, err error) {
	b.setStatus(StatusReconnecting)

	if b.metrics != nil {
		b.metrics.RecordBusStatus(false)
	}

	b.mu.RLock()
	onDisconnect := b.onDisconnect
	onHealthChange := b.onHealthChange
	b.mu.RUnlock()

	if onDisconnect != nil {
		go onDisconnect(err)
	}
	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (b *NATSBus) handleReconnect(_ *nats.Conn) {
	b.setStatus(StatusConnected)
	b.resetCircuit()
	b.reconnects.Add(1)

	if b.metrics != nil {
		b.metrics.RecordBusReconnect()
		b.metrics.RecordBusStatus(true)
	}

	b.mu.RLock()
	onReconnect := b.onReconnect
	onHealthChange := b.onHealthChange
	b.mu.RUnlock()

	if onReconnect != nil {
		go onReconnect()
	}
	if onHealthChange != nil {
		go onHealthChange(true)
	}
}

func (b *NATSBus) handleClosed(_ *nats.Conn) {
	b.setStatus(StatusDisconnected)

	if b.metrics != nil {
		b.metrics.RecordBusStatus(false)
	}

	b.mu.RLock()
	onHealthChange := b.onHealthChange
	b.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (b *NATSBus) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	// May fire for non-connection errors, so no failure is recorded here
	b.logger.Error("NATS error", "error", err)
}

// startHealthMonitoring starts periodic health checks
func (b *NATSBus) startHealthMonitoring() {
	b.stopHealthMonitoring()

	b.mu.Lock()
	b.healthTicker = time.NewTicker(b.healthInterval)
	b.healthDone = make(chan struct{})
	ticker := b.healthTicker
	done := b.healthDone
	b.mu.Unlock()

	go func() {
		defer ticker.Stop()
		lastHealthy := b.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				b.mu.RLock()
				conn := b.conn
				b.mu.RUnlock()

				if conn == nil {
					continue
				}

				healthy := conn.IsConnected()
				rtt, err := conn.RTT()
				if err != nil {
					healthy = false
				} else if b.metrics != nil {
					b.metrics.RecordBusRTT(rtt)
				}

				// Update status based on health
				if healthy && b.Status() != StatusConnected {
					b.setStatus(StatusConnected)
				} else if !healthy && b.Status() == StatusConnected {
					b.setStatus(StatusReconnecting)
				}

				// Notify on change
				if healthy != lastHealthy && b.onHealthChange != nil {
					b.onHealthChange(healthy)
				}

				lastHealthy = healthy
			}
		}
	}()
}

// stopHealthMonitoring stops the health monitoring goroutine
func (b *NATSBus) stopHealthMonitoring() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.healthTicker != nil {
		b.healthTicker.Stop()
		b.healthTicker = nil
	}
	if b.healthDone != nil {
		close(b.healthDone)
		b.healthDone = nil
	}
}
