package domain

import "fmt"

// MalformedTargetError reports a raw target string that does not follow
// the "module.path:attribute" form. This is a caller error and is never
// retried automatically.
type MalformedTargetError struct {
	Raw string // The offending string, verbatim
}

func (e *MalformedTargetError) Error() string {
	return fmt.Sprintf("malformed target %q: want \"module.path:attribute\" with exactly one %q and non-empty segments", e.Raw, Separator)
}

// ImportError reports that the resolver could not produce a module for the
// requested path. It wraps the underlying cause so callers can inspect the
// full chain.
type ImportError struct {
	Module string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("failed to import module %q: %v", e.Module, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// AttributeNotFoundError reports that a resolved module exists but has no
// attribute under the requested name.
type AttributeNotFoundError struct {
	Module    string
	Attribute string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("module %q has no attribute %q", e.Module, e.Attribute)
}

// TypeMismatchError reports that the fetched attribute exists but does not
// satisfy the expected handle kind.
type TypeMismatchError struct {
	Attribute    string
	ExpectedKind string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("attribute %q is not %s", e.Attribute, e.ExpectedKind)
}
