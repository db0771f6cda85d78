package mediator

import "strings"

// Message is the payload routed between components. It is carried opaquely;
// rules and policies read well-known keys ("type", "entityType", "formData",
// "relatedForm", "workflow", "step", "data", "eventName", "eventData")
// through the safe accessors below and ignore everything else.
type Message map[string]any

// Type returns the message's "type" field, or "" when absent or not a string.
func (m Message) Type() string {
	return m.GetString("type", "")
}

// GetString safely extracts a string value with a default fallback
func (m Message) GetString(key, defaultValue string) string {
	if value, exists := m[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetBool safely extracts a boolean value with a default fallback
func (m Message) GetBool(key string, defaultValue bool) bool {
	if value, exists := m[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// GetMap safely extracts a nested map value
func (m Message) GetMap(key string) (map[string]any, bool) {
	if value, exists := m[key]; exists {
		if nested, ok := value.(map[string]any); ok {
			return nested, true
		}
	}
	return nil, false
}

// Has reports whether the key is present with a non-nil value
func (m Message) Has(key string) bool {
	value, exists := m[key]
	return exists && value != nil
}

// Lookup resolves a possibly dotted path ("formData.priority") against the
// message, descending through nested maps. The second return reports whether
// every segment of the path was present.
func (m Message) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = map[string]any(m)
	for _, segment := range strings.Split(path, ".") {
		nested, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = nested[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
