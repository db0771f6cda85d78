package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/c360/uimediator/eventbus"
)

// Notification is one event a MockComponent received through Notify.
type Notification struct {
	Event string
	Data  any
}

// MockComponent is a registrable component double. It satisfies the
// mediator's Notifiable contract and records every notification it receives.
// Thread-safe for concurrent use from multiple goroutines.
type MockComponent struct {
	mu sync.Mutex

	// NotifyFunc, when set, runs after the notification is recorded and
	// supplies the return value. Leave nil for a no-op component.
	NotifyFunc func(ctx context.Context, event string, data any) error

	// Bus, when set, backs the component's own Subscribe calls. Without it
	// Subscribe records the request and returns a no-op release.
	Bus eventbus.Bus

	notifications []Notification
	subscribed    []string

	NotifyCalls    int
	SubscribeCalls int
}

// NewMockComponent creates a mock component that accepts every notification.
func NewMockComponent() *MockComponent {
	return &MockComponent{}
}

// Notify records the event and delegates to NotifyFunc when set.
func (c *MockComponent) Notify(ctx context.Context, event string, data any) error {
	c.mu.Lock()
	c.NotifyCalls++
	c.notifications = append(c.notifications, Notification{Event: event, Data: data})
	fn := c.NotifyFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, event, data)
	}
	return nil
}

// Subscribe installs a handler on the backing bus, or records the request
// and returns a no-op release when no bus is configured.
func (c *MockComponent) Subscribe(event string, h eventbus.Handler) (eventbus.UnsubscribeFunc, error) {
	c.mu.Lock()
	c.SubscribeCalls++
	c.subscribed = append(c.subscribed, event)
	bus := c.Bus
	c.mu.Unlock()

	if bus != nil {
		return bus.Subscribe(event, h)
	}
	return func() error { return nil }, nil
}

// Notifications returns a copy of every recorded notification, in order.
func (c *MockComponent) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]Notification, len(c.notifications))
	copy(result, c.notifications)
	return result
}

// NotificationsOf returns the recorded notifications for one event.
func (c *MockComponent) NotificationsOf(event string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []Notification
	for _, n := range c.notifications {
		if n.Event == event {
			result = append(result, n)
		}
	}
	return result
}

// Subscribed returns the events the component subscribed itself to.
func (c *MockComponent) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]string, len(c.subscribed))
	copy(result, c.subscribed)
	return result
}

// Clear forgets recorded notifications and counters.
func (c *MockComponent) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = nil
	c.subscribed = nil
	c.NotifyCalls = 0
	c.SubscribeCalls = 0
}

// Common test errors for exercising failure paths.
var (
	ErrMockFailed   = errors.New("mock operation failed")
	ErrMockTimeout  = errors.New("mock operation timed out")
	ErrMockRejected = errors.New("mock rejected the request")
)
