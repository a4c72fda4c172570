package domain

import "strings"

// Separator splits the module path from the attribute name in a raw
// target string.
const Separator = ":"

// Target identifies the application handle to load: which module to
// resolve and which attribute of it to fetch.
type Target struct {
	Module    string // Dotted module path, e.g. "pkg.app"
	Attribute string // Attribute name within the module, e.g. "service"
}

// ParseTarget parses a raw "module.path:attribute" string.
// The string must contain exactly one separator and both segments must be
// non-empty; anything else fails with *MalformedTargetError.
func ParseTarget(raw string) (Target, error) {
	module, attribute, ok := strings.Cut(raw, Separator)
	if !ok || module == "" || attribute == "" || strings.Contains(attribute, Separator) {
		return Target{}, &MalformedTargetError{Raw: raw}
	}
	return Target{Module: module, Attribute: attribute}, nil
}

// String reassembles the canonical "module:attribute" form.
func (t Target) String() string {
	return t.Module + Separator + t.Attribute
}

// Namespace returns the top-level segment of the module path
// ("pkg.app.main" -> "pkg"). Invalidating this namespace covers the
// module and everything nested under it.
func (t Target) Namespace() string {
	if i := strings.Index(t.Module, "."); i >= 0 {
		return t.Module[:i]
	}
	return t.Module
}

// IsZero reports whether the target is unset.
func (t Target) IsZero() bool {
	return t.Module == "" && t.Attribute == ""
}
