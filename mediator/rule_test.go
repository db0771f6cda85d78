package mediator

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/uimediator/errors"
	"github.com/c360/uimediator/testutil"
)

func noopAction(ctx context.Context, from, to string, msg Message) error {
	return nil
}

func TestAddRule_Validation(t *testing.T) {
	m, _ := newTestMediator(t)

	t.Run("empty id", func(t *testing.T) {
		err := m.AddRule(Rule{Action: noopAction})
		assert.ErrorIs(t, err, errors.ErrInvalidRule)
	})

	t.Run("nil action", func(t *testing.T) {
		err := m.AddRule(Rule{ID: "r1"})
		assert.ErrorIs(t, err, errors.ErrInvalidRule)
	})

	t.Run("duplicate id", func(t *testing.T) {
		require.NoError(t, m.AddRule(Rule{ID: "dup", Action: noopAction}))
		err := m.AddRule(Rule{ID: "dup", Action: noopAction})
		assert.ErrorIs(t, err, errors.ErrRuleExists)
	})

	t.Run("closed mediator", func(t *testing.T) {
		closed, _ := newTestMediator(t)
		require.NoError(t, closed.Close())
		assert.ErrorIs(t, closed.AddRule(Rule{ID: "r1", Action: noopAction}), errors.ErrMediatorClosed)
	})
}

func TestRemoveRule(t *testing.T) {
	m, _ := newTestMediator(t)

	before := m.Stats().RulesActive
	require.NoError(t, m.AddRule(Rule{ID: "r1", Action: noopAction}))
	require.Equal(t, before+1, m.Stats().RulesActive)

	require.NoError(t, m.RemoveRule("r1"))
	assert.Equal(t, before, m.Stats().RulesActive)
	assert.NotContains(t, m.Rules(), "r1")

	err := m.RemoveRule("r1")
	assert.ErrorIs(t, err, errors.ErrRuleNotFound)
}

func TestRemoveRule_DefaultPolicy(t *testing.T) {
	m, bus := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, m.Register("contact-form", testutil.NewMockComponent(), Metadata{Kind: KindForm}))
	require.NoError(t, m.Register("business-panel", testutil.NewMockComponent(), Metadata{Kind: KindBusiness}))

	require.NoError(t, m.RemoveRule(PolicyFormValidation))

	msg := Message(testutil.SubmitMessage("deal", map[string]any{"name": "Acme"}))
	require.NoError(t, m.Send(ctx, "contact-form", "business-panel", msg))

	assert.Empty(t, bus.EmissionsOf("business:validation-required"))
}

func TestRules_InsertionOrder(t *testing.T) {
	m, _ := newTestMediator(t)

	require.Equal(t, []string{
		PolicyFormValidation,
		PolicyModalConflict,
		PolicyServiceError,
		PolicyDataRefresh,
		PolicyWorkflowStep,
	}, m.Rules())

	require.NoError(t, m.AddRule(Rule{ID: "custom", Action: noopAction}))
	rules := m.Rules()
	assert.Equal(t, "custom", rules[len(rules)-1])
}

func TestRule_WildcardMatching(t *testing.T) {
	m, _ := newTestMediator(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.Register(id, testutil.NewMockComponent(), Metadata{}))
	}

	var wildcardHits, scopedHits atomic.Int32
	require.NoError(t, m.AddRule(Rule{
		ID: "wildcard",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			wildcardHits.Add(1)
			return nil
		},
	}))
	require.NoError(t, m.AddRule(Rule{
		ID:   "scoped",
		From: "a",
		To:   "b",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			scopedHits.Add(1)
			return nil
		},
	}))

	pairs := [][2]string{{"a", "b"}, {"b", "a"}, {"a", "c"}, {"c", "b"}}
	for _, pair := range pairs {
		require.NoError(t, m.Send(ctx, pair[0], pair[1], Message{"n": 1}))
	}

	assert.Equal(t, int32(len(pairs)), wildcardHits.Load(), "wildcard rule fires for every pair")
	assert.Equal(t, int32(1), scopedHits.Load(), "scoped rule fires only for its pair")
}

func TestRule_AllMatchingRulesFire(t *testing.T) {
	m, _ := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, m.Register("a", testutil.NewMockComponent(), Metadata{}))
	require.NoError(t, m.Register("b", testutil.NewMockComponent(), Metadata{}))

	var order []string
	for _, id := range []string{"first", "second"} {
		id := id // per-iteration copy: go.mod pins go 1.21, which has pre-1.22 loopvar scoping
		require.NoError(t, m.AddRule(Rule{
			ID: id,
			Action: func(ctx context.Context, from, to string, msg Message) error {
				order = append(order, id)
				return nil
			},
		}))
	}

	require.NoError(t, m.Send(ctx, "a", "b", Message{"n": 1}))

	assert.Equal(t, []string{"first", "second"}, order, "both actions run, in insertion order")
}

func TestRule_ActionErrorIsolation(t *testing.T) {
	m, _ := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, m.Register("a", testutil.NewMockComponent(), Metadata{}))
	require.NoError(t, m.Register("b", testutil.NewMockComponent(), Metadata{}))

	var secondRan atomic.Bool
	require.NoError(t, m.AddRule(Rule{
		ID: "faulty",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			return testutil.ErrMockFailed
		},
	}))
	require.NoError(t, m.AddRule(Rule{
		ID: "healthy",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			secondRan.Store(true)
			return nil
		},
	}))

	err := m.Send(ctx, "a", "b", Message{"n": 1})

	require.NoError(t, err, "action failure must not surface to the sender")
	assert.True(t, secondRan.Load(), "later matching rule still runs")
	assert.Equal(t, uint64(1), m.Stats().RuleActionFailures)
}

func TestRule_ActionPanicIsolation(t *testing.T) {
	m, _ := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, m.Register("a", testutil.NewMockComponent(), Metadata{}))
	require.NoError(t, m.Register("b", testutil.NewMockComponent(), Metadata{}))

	var secondRan atomic.Bool
	require.NoError(t, m.AddRule(Rule{
		ID: "panicky",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			panic("action exploded")
		},
	}))
	require.NoError(t, m.AddRule(Rule{
		ID: "healthy",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			secondRan.Store(true)
			return nil
		},
	}))

	require.NotPanics(t, func() {
		require.NoError(t, m.Send(ctx, "a", "b", Message{"n": 1}))
	})
	assert.True(t, secondRan.Load())
	assert.Equal(t, uint64(1), m.Stats().RuleActionFailures)
}

func TestRule_ConditionPanicIsNoMatch(t *testing.T) {
	m, _ := newTestMediator(t)
	ctx := context.Background()

	require.NoError(t, m.Register("a", testutil.NewMockComponent(), Metadata{}))
	require.NoError(t, m.Register("b", testutil.NewMockComponent(), Metadata{}))

	var panickyRan, healthyRan atomic.Bool
	require.NoError(t, m.AddRule(Rule{
		ID: "panicky-condition",
		Condition: func(from, to string, msg Message) bool {
			panic("condition exploded")
		},
		Action: func(ctx context.Context, from, to string, msg Message) error {
			panickyRan.Store(true)
			return nil
		},
	}))
	require.NoError(t, m.AddRule(Rule{
		ID: "healthy",
		Action: func(ctx context.Context, from, to string, msg Message) error {
			healthyRan.Store(true)
			return nil
		},
	}))

	require.NotPanics(t, func() {
		require.NoError(t, m.Send(ctx, "a", "b", Message{"n": 1}))
	})
	assert.False(t, panickyRan.Load(), "panicking condition is treated as no match")
	assert.True(t, healthyRan.Load())
}
