package eventbus

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/uimediator/metric"
)

// BusOption is a functional option for configuring the NATSBus
type BusOption func(*NATSBus) error

// WithMaxReconnects sets the maximum number of reconnection attempts (-1 for infinite)
func WithMaxReconnects(max int) BusOption {
	return func(b *NATSBus) error {
		b.maxReconnects = max
		return nil
	}
}

// WithReconnectWait sets the wait time between reconnection attempts
func WithReconnectWait(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		b.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets the ping interval for connection health checks
func WithPingInterval(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		b.pingInterval = d
		return nil
	}
}

// WithHealthInterval sets the interval for health monitoring (0 disables it)
func WithHealthInterval(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		b.healthInterval = d
		return nil
	}
}

// WithLogger sets a custom logger for the bus
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *NATSBus) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "NATSBus")
		return nil
	}
}

// WithDisconnectCallback sets a callback for disconnection events.
// This is in addition to the automatic reconnection handling.
func WithDisconnectCallback(fn func(error)) BusOption {
	return func(b *NATSBus) error {
		b.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback sets a callback for reconnection events
func WithReconnectCallback(fn func()) BusOption {
	return func(b *NATSBus) error {
		b.onReconnect = fn
		return nil
	}
}

// WithHealthChangeCallback sets a callback for health status changes
func WithHealthChangeCallback(fn func(healthy bool)) BusOption {
	return func(b *NATSBus) error {
		b.onHealthChange = fn
		return nil
	}
}

// WithCircuitBreakerThreshold sets the number of failures before opening circuit
func WithCircuitBreakerThreshold(threshold int32) BusOption {
	return func(b *NATSBus) error {
		if threshold < 1 {
			threshold = 5 // reasonable default
		}
		b.circuitThreshold = threshold
		return nil
	}
}

// WithMaxBackoff sets the maximum backoff duration for the circuit breaker
func WithMaxBackoff(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		if d < time.Second {
			d = time.Minute // reasonable default
		}
		b.maxBackoff = d
		return nil
	}
}

// WithCredentials sets username and password for authentication
func WithCredentials(username, password string) BusOption {
	return func(b *NATSBus) error {
		b.username = username
		b.password = password
		return nil
	}
}

// WithToken sets a token for authentication
func WithToken(token string) BusOption {
	return func(b *NATSBus) error {
		b.token = token
		return nil
	}
}

// WithTLS enables TLS with optional certificate paths
func WithTLS(certFile, keyFile, caFile string) BusOption {
	return func(b *NATSBus) error {
		b.tlsCertFile = certFile
		b.tlsKeyFile = keyFile
		b.tlsCAFile = caFile
		b.tlsEnabled = true
		return nil
	}
}

// WithName sets the client name for identification
func WithName(name string) BusOption {
	return func(b *NATSBus) error {
		b.clientName = name
		return nil
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		b.timeout = d
		return nil
	}
}

// WithDrainTimeout sets the timeout for draining on close
func WithDrainTimeout(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		b.drainTimeout = d
		return nil
	}
}

// WithDeliveryTimeout bounds the context handed to each subscription handler
func WithDeliveryTimeout(d time.Duration) BusOption {
	return func(b *NATSBus) error {
		if d <= 0 {
			return fmt.Errorf("delivery timeout must be positive, got %v", d)
		}
		b.deliveryTimeout = d
		return nil
	}
}

// WithSubjectPrefix sets the NATS subject prefix events are routed under.
// Multiple mediated applications can share one NATS cluster by choosing
// distinct prefixes.
func WithSubjectPrefix(prefix string) BusOption {
	return func(b *NATSBus) error {
		prefix = strings.Trim(prefix, ".")
		if prefix == "" {
			return fmt.Errorf("subject prefix must not be empty")
		}
		if strings.ContainsAny(prefix, " \t*>") {
			return fmt.Errorf("subject prefix %q contains reserved characters", prefix)
		}
		b.subjectPrefix = prefix
		return nil
	}
}

// WithCompression enables message compression
func WithCompression(enabled bool) BusOption {
	return func(b *NATSBus) error {
		b.compression = enabled
		return nil
	}
}

// WithBusMetrics enables bus metrics collection using the provided registry.
// Connection status, reconnects, RTT and event throughput are recorded.
func WithBusMetrics(registry *metric.MetricsRegistry) BusOption {
	return func(b *NATSBus) error {
		if registry == nil {
			return nil // No metrics
		}
		b.metrics = registry.CoreMetrics()
		return nil
	}
}
