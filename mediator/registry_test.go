package mediator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/eventbus"
	"github.com/c360/uimediator/testutil"
)

func newTestMediator(t *testing.T) (*Mediator, *testutil.RecordingBus) {
	t.Helper()

	bus := testutil.NewRecordingBus()
	m, err := New(bus)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m, bus
}

func TestRegister_Validation(t *testing.T) {
	m, _ := newTestMediator(t)

	t.Run("empty id", func(t *testing.T) {
		err := m.Register("", testutil.NewMockComponent(), Metadata{})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrEmptyComponentID)
	})

	t.Run("nil component", func(t *testing.T) {
		err := m.Register("widget", nil, Metadata{})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrNilComponent)
	})

	t.Run("closed mediator", func(t *testing.T) {
		closed, _ := newTestMediator(t)
		require.NoError(t, closed.Close())

		err := closed.Register("widget", testutil.NewMockComponent(), Metadata{})
		assert.ErrorIs(t, err, errors.ErrMediatorClosed)
	})
}

func TestRegister_FormSubscriptions(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	form := testutil.NewMockComponent()
	require.NoError(t, m.Register("contact-form", form, Metadata{Kind: KindForm}))

	require.NoError(t, bus.Emit(ctx, eventbus.EventFormValidated("contact-form"), map[string]any{"valid": true}))
	require.NoError(t, bus.Emit(ctx, eventbus.EventFormReset("contact-form"), map[string]any{"reason": "test"}))

	// Scoped events for other forms must not leak in.
	require.NoError(t, bus.Emit(ctx, eventbus.EventFormValidated("other-form"), nil))

	notifications := form.Notifications()
	require.Len(t, notifications, 2)
	assert.Equal(t, eventbus.EventFormValidated("contact-form"), notifications[0].Event)
	assert.Equal(t, map[string]any{"valid": true}, notifications[0].Data)
	assert.Equal(t, eventbus.EventFormReset("contact-form"), notifications[1].Event)
}

func TestRegister_ModalSubscriptions(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	modal := testutil.NewMockComponent()
	require.NoError(t, m.Register("settings-modal", modal, Metadata{Kind: KindModal}))

	require.NoError(t, bus.Emit(ctx, eventbus.EventModalOpened("settings-modal"), nil))
	require.NoError(t, bus.Emit(ctx, eventbus.EventModalClosed("settings-modal"), nil))

	assert.Len(t, modal.Notifications(), 2)
}

func TestRegister_BusinessSubscriptions(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	panel := testutil.NewMockComponent()
	require.NoError(t, m.Register("pipeline", panel, Metadata{Kind: KindBusiness}))

	for _, event := range []string{
		eventbus.EventDealCreated,
		eventbus.EventDealUpdated,
		eventbus.EventContactSelected,
		eventbus.EventActivityCreated,
	} {
		require.NoError(t, bus.Emit(ctx, event, map[string]any{"id": "x"}))
	}

	assert.Equal(t, 4, panel.NotifyCalls)
}

func TestRegister_DataSubscriptions(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	panel := testutil.NewMockComponent()
	require.NoError(t, m.Register("deal-list", panel, Metadata{Kind: KindData, Dependencies: []string{"deal"}}))

	require.NoError(t, bus.Emit(ctx, eventbus.EventDataRefresh("deal-list"), nil))
	require.NoError(t, bus.Emit(ctx, eventbus.EventDataRefreshAll, nil))
	require.NoError(t, bus.Emit(ctx, eventbus.EventDataRefresh("other-list"), nil))

	assert.Equal(t, 2, panel.NotifyCalls)
}

func TestRegister_GenericHasNoSubscriptions(t *testing.T) {
	bus := eventbus.NewMemoryBus()
	m, err := New(bus)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Register("widget", testutil.NewMockComponent(), Metadata{}))

	for _, event := range []string{
		eventbus.EventDealCreated,
		eventbus.EventDataRefreshAll,
		eventbus.EventFormValidated("widget"),
		eventbus.EventModalOpened("widget"),
		eventbus.EventDataRefresh("widget"),
	} {
		assert.Equal(t, 0, bus.SubscriberCount(event), "no subscription expected for %s", event)
	}
}

func TestUnregister_ReleasesSubscriptions(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	form := testutil.NewMockComponent()
	require.NoError(t, m.Register("contact-form", form, Metadata{Kind: KindForm}))

	require.NoError(t, bus.Emit(ctx, eventbus.EventFormValidated("contact-form"), nil))
	require.Equal(t, 1, form.NotifyCalls)

	m.Unregister("contact-form")

	require.NoError(t, bus.Emit(ctx, eventbus.EventFormValidated("contact-form"), nil))
	require.NoError(t, bus.Emit(ctx, eventbus.EventFormReset("contact-form"), nil))
	assert.Equal(t, 1, form.NotifyCalls, "subscriptions must not fire after unregister")
	assert.NotContains(t, m.Components(), "contact-form")
}

func TestUnregister_UnknownIDIsNoOp(t *testing.T) {
	m, _ := newTestMediator(t)

	assert.NotPanics(t, func() {
		m.Unregister("never-registered")
		m.Unregister("")
	})
}

func TestRegister_ReplacePriorRegistration(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	first := testutil.NewMockComponent()
	second := testutil.NewMockComponent()

	require.NoError(t, m.Register("deal-list", first, Metadata{Kind: KindData}))
	require.NoError(t, m.Register("deal-list", second, Metadata{Kind: KindData}))

	require.NoError(t, bus.Emit(ctx, eventbus.EventDataRefresh("deal-list"), nil))

	assert.Equal(t, 0, first.NotifyCalls, "replaced registration must be released")
	assert.Equal(t, 1, second.NotifyCalls)
	assert.Equal(t, []string{"deal-list"}, m.Components())
}

func TestComponents_Sorted(t *testing.T) {
	m, _ := newTestMediator(t)

	for _, id := range []string{"zebra", "alpha", "mango"} {
		require.NoError(t, m.Register(id, testutil.NewMockComponent(), Metadata{}))
	}

	assert.Equal(t, []string{"alpha", "mango", "zebra"}, m.Components())
}

func TestComponentMetadata(t *testing.T) {
	m, _ := newTestMediator(t)

	md := Metadata{
		Kind:         KindData,
		Capabilities: []string{"export"},
		Dependencies: []string{"deal", "contact"},
	}
	require.NoError(t, m.Register("deal-list", testutil.NewMockComponent(), md))

	got, ok := m.ComponentMetadata("deal-list")
	require.True(t, ok)
	assert.Equal(t, md, got)

	_, ok = m.ComponentMetadata("missing")
	assert.False(t, ok)
}

// failingSubscribeBus fails Subscribe after a set number of successes, to
// exercise partial-install rollback.
type failingSubscribeBus struct {
	inner     *eventbus.MemoryBus
	succeed   int
	calls     int
	rollbacks int
}

func (b *failingSubscribeBus) Subscribe(event string, h eventbus.Handler) (eventbus.UnsubscribeFunc, error) {
	b.calls++
	if b.calls > b.succeed {
		return nil, testutil.ErrMockFailed
	}
	unsub, err := b.inner.Subscribe(event, h)
	if err != nil {
		return nil, err
	}
	return func() error {
		b.rollbacks++
		return unsub()
	}, nil
}

func (b *failingSubscribeBus) Emit(ctx context.Context, event string, payload any) error {
	return b.inner.Emit(ctx, event, payload)
}

func TestRegister_SubscribeFailureRollsBack(t *testing.T) {
	bus := &failingSubscribeBus{inner: eventbus.NewMemoryBus(), succeed: 1}
	m, err := New(bus)
	require.NoError(t, err)
	defer m.Close()

	err = m.Register("contact-form", testutil.NewMockComponent(), Metadata{Kind: KindForm})
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrMockFailed)

	assert.Empty(t, m.Components())
	assert.Equal(t, 1, bus.rollbacks, "installed subscription must be released on failure")
}
