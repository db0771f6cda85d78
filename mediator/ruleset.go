package mediator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/uimediator/errors"
)

// Supported clause operators. Comparison operators try numeric comparison
// first and fall back to string comparison; string operators format
// non-string values with %v.
const (
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"
	OpContains         = "contains"
	OpPrefix           = "prefix"
	OpSuffix           = "suffix"
	OpExists           = "exists"
)

// Logic operators joining a definition's When clauses.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// Clause is a single field comparison evaluated against the message map.
// Field is a dotted path into the message; Value is ignored by the exists
// operator.
type Clause struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// EmitSpec names the event a declarative rule emits and its payload
// template. Template strings may reference ${from}, ${to} and
// ${message.<path>}; a string that is exactly one reference substitutes the
// raw value, preserving numbers and maps.
type EmitSpec struct {
	Event   string         `json:"event" yaml:"event"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// RuleDefinition is the declarative, serializable form of a Rule. Disabled
// definitions are skipped at install time.
type RuleDefinition struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	From         string   `json:"from,omitempty" yaml:"from,omitempty"`
	To           string   `json:"to,omitempty" yaml:"to,omitempty"`
	EventPattern string   `json:"event_pattern,omitempty" yaml:"event_pattern,omitempty"`
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Logic        string   `json:"logic,omitempty" yaml:"logic,omitempty"`
	When         []Clause `json:"when,omitempty" yaml:"when,omitempty"`
	Emit         EmitSpec `json:"emit" yaml:"emit"`
}

// LoadRuleSet reads rule definitions from a JSON or YAML file, chosen by
// extension. Both formats accept either an array of definitions or a single
// definition object.
func LoadRuleSet(path string) ([]RuleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var definitions []RuleDefinition
		if err := yaml.Unmarshal(data, &definitions); err != nil {
			var single RuleDefinition
			if err2 := yaml.Unmarshal(data, &single); err2 != nil {
				return nil, fmt.Errorf("failed to parse rules file %s: %w (also tried as single rule: %v)",
					path, err, err2)
			}
			definitions = []RuleDefinition{single}
		}
		return definitions, nil
	default:
		var definitions []RuleDefinition
		if err := json.Unmarshal(data, &definitions); err != nil {
			var single RuleDefinition
			if err2 := json.Unmarshal(data, &single); err2 != nil {
				return nil, fmt.Errorf("failed to parse rules file %s: %w (also tried as single rule: %v)",
					path, err, err2)
			}
			definitions = []RuleDefinition{single}
		}
		return definitions, nil
	}
}

// AddRuleSet installs every enabled definition. Invalid definitions are
// logged and skipped so one bad rule does not block the rest; the count of
// rules actually added is returned together with an aggregated error.
func (m *Mediator) AddRuleSet(defs []RuleDefinition) (int, error) {
	added := 0
	var problems []string

	for _, def := range defs {
		if !def.Enabled {
			m.logger.Debug("skipping disabled rule", "rule", def.ID)
			continue
		}

		rule, err := m.buildRule(def)
		if err != nil {
			m.logger.Error("failed to build rule from definition",
				"rule", def.ID,
				"error", err)
			problems = append(problems, fmt.Sprintf("%s: %v", def.ID, err))
			continue
		}

		if err := m.AddRule(rule); err != nil {
			m.logger.Error("failed to add rule",
				"rule", def.ID,
				"error", err)
			problems = append(problems, fmt.Sprintf("%s: %v", def.ID, err))
			continue
		}
		added++
	}

	if len(problems) > 0 {
		return added, fmt.Errorf("rule set errors: %s", strings.Join(problems, "; "))
	}
	return added, nil
}

// AddRuleSetFile loads a rule file and installs its enabled definitions.
func (m *Mediator) AddRuleSetFile(path string) (int, error) {
	defs, err := LoadRuleSet(path)
	if err != nil {
		return 0, err
	}
	return m.AddRuleSet(defs)
}

// buildRule compiles a definition into an executable Rule.
func (m *Mediator) buildRule(def RuleDefinition) (Rule, error) {
	if def.ID == "" {
		return Rule{}, fmt.Errorf("definition has no id: %w", errors.ErrInvalidRule)
	}
	if def.Emit.Event == "" {
		return Rule{}, fmt.Errorf("definition %s has no emit event: %w", def.ID, errors.ErrInvalidRule)
	}
	switch def.Logic {
	case "", LogicAnd, LogicOr:
	default:
		return Rule{}, fmt.Errorf("definition %s has unsupported logic %q: %w", def.ID, def.Logic, errors.ErrInvalidRule)
	}
	for _, clause := range def.When {
		if clause.Field == "" {
			return Rule{}, fmt.Errorf("definition %s has a clause with no field: %w", def.ID, errors.ErrInvalidRule)
		}
		if !isValidOperator(clause.Operator) {
			return Rule{}, fmt.Errorf("definition %s has unsupported operator %q: %w", def.ID, clause.Operator, errors.ErrInvalidRule)
		}
	}

	var condition Condition
	if len(def.When) > 0 {
		clauses := append([]Clause(nil), def.When...)
		logic := def.Logic
		condition = func(from, to string, msg Message) bool {
			return evalClauses(clauses, logic, msg)
		}
	}

	emit := def.Emit
	action := func(ctx context.Context, from, to string, msg Message) error {
		event := expandString(emit.Event, from, to, msg)
		payload := make(map[string]any, len(emit.Payload))
		for key, value := range emit.Payload {
			payload[key] = expandValue(value, from, to, msg)
		}
		return m.bus.Emit(ctx, event, payload)
	}

	return Rule{
		ID:           def.ID,
		From:         def.From,
		To:           def.To,
		EventPattern: def.EventPattern,
		Condition:    condition,
		Action:       action,
	}, nil
}

func isValidOperator(op string) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessThanEqual,
		OpGreaterThan, OpGreaterThanEqual,
		OpContains, OpPrefix, OpSuffix, OpExists:
		return true
	}
	return false
}

// evalClauses joins clause results with the definition's logic operator.
// The default is and.
func evalClauses(clauses []Clause, logic string, msg Message) bool {
	if logic == LogicOr {
		for _, clause := range clauses {
			if evalClause(clause, msg) {
				return true
			}
		}
		return false
	}

	for _, clause := range clauses {
		if !evalClause(clause, msg) {
			return false
		}
	}
	return true
}

// evalClause evaluates one comparison. A missing field fails every operator
// except exists, which reports presence.
func evalClause(clause Clause, msg Message) bool {
	fieldValue, found := msg.Lookup(clause.Field)

	if clause.Operator == OpExists {
		return found
	}
	if !found {
		return false
	}

	switch clause.Operator {
	case OpEqual:
		return compareValues(fieldValue, clause.Value) == 0
	case OpNotEqual:
		return compareValues(fieldValue, clause.Value) != 0
	case OpLessThan:
		return compareValues(fieldValue, clause.Value) < 0
	case OpLessThanEqual:
		return compareValues(fieldValue, clause.Value) <= 0
	case OpGreaterThan:
		return compareValues(fieldValue, clause.Value) > 0
	case OpGreaterThanEqual:
		return compareValues(fieldValue, clause.Value) >= 0
	case OpContains:
		return strings.Contains(stringify(fieldValue), stringify(clause.Value))
	case OpPrefix:
		return strings.HasPrefix(stringify(fieldValue), stringify(clause.Value))
	case OpSuffix:
		return strings.HasSuffix(stringify(fieldValue), stringify(clause.Value))
	}
	return false
}

// compareValues orders two values, numerically when both convert to float64
// and by string form otherwise.
func compareValues(a, b any) int {
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)

	if aIsNum && bIsNum {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
		return 0
	}

	aStr := stringify(a)
	bStr := stringify(b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	}
	return 0
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// expandValue resolves template references in a payload value. Strings that
// are exactly one ${...} reference substitute the raw referenced value; other
// strings expand references textually. Maps and slices recurse.
func expandValue(v any, from, to string, msg Message) any {
	switch val := v.(type) {
	case string:
		if ref, ok := soleReference(val); ok {
			if resolved, found := resolveRef(ref, from, to, msg); found {
				return resolved
			}
			return nil
		}
		return expandString(val, from, to, msg)
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, item := range val {
			out[key] = expandValue(item, from, to, msg)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, from, to, msg)
		}
		return out
	default:
		return v
	}
}

// expandString substitutes references inside a template string. Unresolved
// references expand to the empty string.
func expandString(s, from, to string, msg Message) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, func(name string) string {
		if resolved, found := resolveRef(name, from, to, msg); found {
			return stringify(resolved)
		}
		return ""
	})
}

// soleReference reports whether s is exactly one ${...} reference and
// returns the reference name.
func soleReference(s string) (string, bool) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	if strings.Count(s, "${") != 1 {
		return "", false
	}
	inner := s[2 : len(s)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	return inner, true
}

func resolveRef(name, from, to string, msg Message) (any, bool) {
	switch name {
	case "from":
		return from, true
	case "to":
		return to, true
	case "message":
		return map[string]any(msg), true
	}
	if path, ok := strings.CutPrefix(name, "message."); ok {
		return msg.Lookup(path)
	}
	return nil, false
}
