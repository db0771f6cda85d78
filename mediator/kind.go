package mediator

import "strings"

// Kind classifies a registered component and drives which default event
// subscriptions the registry installs on its behalf.
type Kind int

// Component kinds. KindGeneric is the zero value and receives no automatic
// subscriptions; generic components are still reachable through rules and
// direct sends.
const (
	KindGeneric Kind = iota
	KindForm
	KindModal
	KindBusiness
	KindData
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindForm:
		return "form"
	case KindModal:
		return "modal"
	case KindBusiness:
		return "business"
	case KindData:
		return "data"
	default:
		return "generic"
	}
}

// ParseKind maps a free-form kind string onto a Kind. Matching is
// case-insensitive; unrecognized strings map to KindGeneric.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "form":
		return KindForm
	case "modal":
		return KindModal
	case "business":
		return KindBusiness
	case "data":
		return KindData
	default:
		return KindGeneric
	}
}

// Metadata describes a registered component. Kind selects the default
// subscriptions installed at registration; Dependencies feed the
// dependency-based refresh policy; Capabilities are informational.
type Metadata struct {
	Kind         Kind     `json:"kind"`
	Capabilities []string `json:"capabilities,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// DependsOn reports whether the metadata lists the given entity as a
// dependency.
func (md Metadata) DependsOn(entity string) bool {
	for _, dep := range md.Dependencies {
		if dep == entity {
			return true
		}
	}
	return false
}
