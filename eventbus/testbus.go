package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestBus provides testcontainers-based NATS infrastructure for tests that
// need a real broker behind the Bus interface.
type TestBus struct {
	container testcontainers.Container
	Bus       *NATSBus
	URL       string
	cleanup   func()
}

// testConfig holds configuration for the test bus
type testConfig struct {
	natsVersion  string
	timeout      time.Duration
	startTimeout time.Duration
	busOpts      []BusOption
}

// TestOption for configuring the test bus
type TestOption func(*testConfig)

// WithNATSVersion specifies a specific NATS server version to use
func WithNATSVersion(version string) TestOption {
	return func(cfg *testConfig) {
		cfg.natsVersion = version
	}
}

// WithTestTimeout sets the connection timeout for the test bus
func WithTestTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = timeout
	}
}

// WithStartTimeout sets the container startup timeout
func WithStartTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.startTimeout = timeout
	}
}

// WithBusOptions forwards extra options to the NATSBus under test
func WithBusOptions(opts ...BusOption) TestOption {
	return func(cfg *testConfig) {
		cfg.busOpts = append(cfg.busOpts, opts...)
	}
}

// NewSharedTestBus creates a NATS test container for use in TestMain.
// Unlike NewTestBus, this doesn't require testing.TB and returns errors.
func NewSharedTestBus(opts ...TestOption) (*TestBus, error) {
	cfg := defaultTestConfig(opts)
	ctx := context.Background()

	container, url, err := startContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus, err := connectBus(ctx, url, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestBus{
		container: container,
		Bus:       bus,
		URL:       url,
		cleanup: func() {
			_ = bus.Close(context.Background())           // Best effort test cleanup
			_ = container.Terminate(context.Background()) // Best effort test cleanup
		},
	}, nil
}

// NewTestBus creates a NATS test container and a connected bus.
// Accepts testing.TB so it works with both *testing.T and *testing.B.
func NewTestBus(t testing.TB, opts ...TestOption) *TestBus {
	t.Helper()

	tb, err := NewSharedTestBus(opts...)
	if err != nil {
		t.Fatalf("Failed to start NATS test bus: %v", err)
	}

	t.Cleanup(tb.Terminate)

	return tb
}

func defaultTestConfig(opts []TestOption) *testConfig {
	cfg := &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// startContainer brings up a NATS server container and returns its URL
func startContainer(ctx context.Context, cfg *testConfig) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get mapped port: %w", err)
	}

	return container, fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}

// connectBus builds and connects a NATSBus suitable for tests
func connectBus(ctx context.Context, url string, cfg *testConfig) (*NATSBus, error) {
	busOpts := append([]BusOption{
		WithTimeout(cfg.timeout),
		WithMaxReconnects(0),  // No reconnects in tests
		WithHealthInterval(0), // Disable health monitoring
	}, cfg.busOpts...)

	bus, err := NewNATSBus(url, busOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS bus: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if err := bus.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if err := bus.WaitForConnection(connectCtx); err != nil {
		_ = bus.Close(ctx) // Best effort cleanup on error path
		return nil, fmt.Errorf("NATS connection not ready: %w", err)
	}

	return bus, nil
}

// Terminate manually terminates the container and bus (usually handled by t.Cleanup)
func (tb *TestBus) Terminate() {
	if tb.cleanup != nil {
		tb.cleanup()
		tb.cleanup = nil
	}
}

// IsReady checks if the NATS connection is ready for use
func (tb *TestBus) IsReady() bool {
	return tb.Bus.IsHealthy()
}

// GetNativeConnection returns the underlying NATS connection for direct access
func (tb *TestBus) GetNativeConnection() *gonats.Conn {
	tb.Bus.mu.RLock()
	defer tb.Bus.mu.RUnlock()
	return tb.Bus.conn
}
