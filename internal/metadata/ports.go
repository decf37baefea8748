package metadata

import "strings"

// Role is the direction of a port.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

// PortRule maps a normalized parameter name to a role when Match holds.
type PortRule struct {
	Name  string
	Match func(normalized string) bool
	Role  Role
}

// PortRules returns the classification rules in evaluation order. The first
// matching rule wins and names that match nothing are outputs. The order is
// part of the contract: ambiguous names lean towards output.
func PortRules() []PortRule {
	contains := func(sub string) func(string) bool {
		return func(n string) bool { return strings.Contains(n, sub) }
	}
	prefix := func(p string) func(string) bool {
		return func(n string) bool { return strings.HasPrefix(n, p) }
	}
	return []PortRule{
		{Name: "contains input", Match: contains("input"), Role: RoleInput},
		{Name: "contains output", Match: contains("output"), Role: RoleOutput},
		{Name: "left channel", Match: prefix("left "), Role: RoleOutput},
		{Name: "right channel", Match: prefix("right "), Role: RoleOutput},
		{Name: "left/mono", Match: contains("left/mono"), Role: RoleOutput},
		{Name: "contains out", Match: contains("out"), Role: RoleOutput},
		{Name: "contains in", Match: contains("in"), Role: RoleInput},
	}
}

// ClassifyPort infers the port role of a routing parameter from its name.
func ClassifyPort(name string) Role {
	n := NormalizeName(name)
	for _, rule := range PortRules() {
		if rule.Match(n) {
			return rule.Role
		}
	}
	return RoleOutput
}

// IsRoutingName reports whether a parameter name marks it as routing: its
// normalized form mentions an input or an output.
func IsRoutingName(name string) bool {
	n := NormalizeName(name)
	return strings.Contains(n, "input") || strings.Contains(n, "output")
}
