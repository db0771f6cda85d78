package mediator

import (
	"context"

	"github.com/c360/uimediator/errors"
)

// Wildcard matches any component id in a rule's From or To field.
const Wildcard = "*"

// Condition decides whether a matched rule's action should run. Conditions
// must be side-effect free; a panicking condition is treated as no match.
type Condition func(from, to string, msg Message) bool

// Action performs a rule's effect, typically by emitting bus events. The
// context is owned by the mediator's processing loop rather than any single
// Send caller, so cancelling one Send does not abort actions queued by others.
type Action func(ctx context.Context, from, to string, msg Message) error

// Rule routes messages between components. From and To are component ids or
// Wildcard. EventPattern is informational and recorded in traces; matching is
// driven by From, To and Condition.
type Rule struct {
	ID           string
	From         string
	To           string
	EventPattern string
	Condition    Condition
	Action       Action
}

// matches reports whether the rule's From/To patterns cover the pair.
func (r Rule) matches(from, to string) bool {
	if r.From != Wildcard && r.From != from {
		return false
	}
	if r.To != Wildcard && r.To != to {
		return false
	}
	return true
}

// AddRule appends a rule to the evaluation order. Rules run in insertion
// order during message processing. Empty From or To normalize to Wildcard.
func (m *Mediator) AddRule(rule Rule) error {
	if m.closed.Load() {
		return errors.ErrMediatorClosed
	}
	if rule.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidRule, "Mediator", "AddRule", "validate rule id")
	}
	if rule.Action == nil {
		return errors.WrapInvalid(errors.ErrInvalidRule, "Mediator", "AddRule", "validate rule action")
	}
	if rule.From == "" {
		rule.From = Wildcard
	}
	if rule.To == "" {
		rule.To = Wildcard
	}

	m.mu.Lock()
	for _, existing := range m.rules {
		if existing.ID == rule.ID {
			m.mu.Unlock()
			return errors.WrapInvalid(errors.ErrRuleExists, "Mediator", "AddRule", "add rule "+rule.ID)
		}
	}
	m.rules = append(m.rules, rule)
	count := len(m.rules)
	m.mu.Unlock()

	if m.core != nil {
		m.core.SetRulesActive(count)
	}
	m.logger.Debug("rule added",
		"rule", rule.ID,
		"from", rule.From,
		"to", rule.To)

	return nil
}

// RemoveRule deletes the rule with the given id, preserving the relative
// order of the remaining rules.
func (m *Mediator) RemoveRule(id string) error {
	if m.closed.Load() {
		return errors.ErrMediatorClosed
	}

	m.mu.Lock()
	idx := -1
	for i, rule := range m.rules {
		if rule.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return errors.WrapInvalid(errors.ErrRuleNotFound, "Mediator", "RemoveRule", "remove rule "+id)
	}
	m.rules = append(m.rules[:idx:idx], m.rules[idx+1:]...)
	count := len(m.rules)
	m.mu.Unlock()

	if m.core != nil {
		m.core.SetRulesActive(count)
	}
	m.logger.Debug("rule removed", "rule", id)

	return nil
}

// Rules returns the ids of the installed rules in evaluation order.
func (m *Mediator) Rules() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rules))
	for _, rule := range m.rules {
		ids = append(ids, rule.ID)
	}
	return ids
}

// matchingRules snapshots the rule list and evaluates patterns and conditions
// without holding the mediator lock, so conditions may call back into
// read-side registry helpers.
func (m *Mediator) matchingRules(from, to string, msg Message) []Rule {
	m.mu.RLock()
	snapshot := make([]Rule, len(m.rules))
	copy(snapshot, m.rules)
	m.mu.RUnlock()

	var matched []Rule
	for _, rule := range snapshot {
		if !rule.matches(from, to) {
			continue
		}
		if rule.Condition != nil && !m.evalCondition(rule, from, to, msg) {
			continue
		}
		matched = append(matched, rule)
	}
	return matched
}

// evalCondition runs a rule condition with panic containment. A panic is
// logged and treated as no match.
func (m *Mediator) evalCondition(rule Rule, from, to string, msg Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			m.logger.Error("rule condition panicked",
				"rule", rule.ID,
				"from", from,
				"to", to,
				"panic", r)
			if m.core != nil {
				m.core.RecordError("mediator", "fatal")
			}
		}
	}()
	return rule.Condition(from, to, msg)
}
